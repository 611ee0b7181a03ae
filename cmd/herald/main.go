package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/morrowstudios/herald/internal/backup"
	"github.com/morrowstudios/herald/internal/coa"
	"github.com/morrowstudios/herald/internal/database"
	"github.com/morrowstudios/herald/internal/dna"
	"github.com/morrowstudios/herald/internal/gallery"
	"github.com/morrowstudios/herald/internal/i18n"
	"github.com/morrowstudios/herald/internal/search"
	"github.com/morrowstudios/herald/internal/store"
	"github.com/morrowstudios/herald/internal/tags"
	"github.com/morrowstudios/herald/internal/ui"
	"github.com/morrowstudios/herald/internal/watch"
)

// Populated at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var noColor bool

// buildVersion prefers ldflags values, falling back to module build info.
func buildVersion() string {
	if version != "dev" {
		return fmt.Sprintf("%s (%s, %s)", version, commit, date)
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "herald",
		Short: "Asset manager for Crusader Kings III modding",
		Long: `HERALD keeps Crusader Kings III modding assets in a local vault:
character DNA strings, coat of arms definitions, portraits and preview
images, organised into databases and galleries with zip backups.

The DNA tools understand the persistent DNA blocks the game exports and
can rewrite them so dominant genes breed true.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ui.Init(noColor)
		},
		Run: func(cmd *cobra.Command, args []string) {
			ui.LogoWithTagline(translator().T("app_tagline"))
			fmt.Println()
			if s, err := store.Load(store.Home()); err == nil {
				showWelcomeOnce(s)
			}
			_ = cmd.Help()
		},
		SilenceUsage: true,
	}
	rootCmd.Version = buildVersion()
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "core", Title: "Core Commands:"},
		&cobra.Group{ID: "assets", Title: "Asset Commands:"},
		&cobra.Group{ID: "vault", Title: "Vault Commands:"},
	)

	rootCmd.AddCommand(
		initCmd(),
		doctorCmd(),
		configCmd(),
		versionCmd(),
		localeCmd(),
		statsCmd(),
		findCmd(),
		dnaCmd(),
		charCmd(),
		coaCmd(),
		galleryCmd(),
		dbCmd(),
		backupCmd(),
		watchCmd(),
		completionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// Shared helpers

// loadStore opens the vault or explains how to create one.
func loadStore() (*store.Store, error) {
	s, err := store.Load(store.Home())
	if err != nil {
		return nil, fmt.Errorf("herald is not initialized — run 'herald init' first")
	}
	ui.SetTheme(s.Config.UI.Theme)
	return s, nil
}

// loadTranslator builds the message catalog for the configured language.
// Locale trouble never blocks a command; worst case the output is English.
func loadTranslator(s *store.Store) *i18n.Catalog {
	c, err := i18n.Load(s.Path("locales"))
	if err != nil {
		c = i18n.Builtin()
	}
	// An unknown language in config keeps the English default.
	_ = c.SetLanguage(s.Config.Language)
	return c
}

// translator works even without a vault; the DNA commands run standalone.
func translator() *i18n.Catalog {
	s, err := store.Load(store.Home())
	if err != nil {
		return i18n.Builtin()
	}
	return loadTranslator(s)
}

// activeCharDir returns the character data dir of the active character
// database, seeding the registry on first use.
func activeCharDir(s *store.Store) (string, error) {
	reg, err := database.Ensure(s.DatabasesDir())
	if err != nil {
		return "", err
	}
	return database.CharacterDataDir(s.DatabasesDir(), reg.CurrentCharacterDB), nil
}

// activeCoaDir is the coat-of-arms counterpart of activeCharDir.
func activeCoaDir(s *store.Store) (string, error) {
	reg, err := database.Ensure(s.DatabasesDir())
	if err != nil {
		return "", err
	}
	return database.CoaDataDir(s.DatabasesDir(), reg.CurrentCoADB), nil
}

// readInput resolves asset text from a file argument ('-' for stdin), the
// clipboard, or piped stdin, in that order.
func readInput(fileArg string, fromClipboard bool) (string, error) {
	if fileArg == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	if fileArg != "" {
		data, err := os.ReadFile(fileArg)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	if fromClipboard {
		return clipboard.ReadAll()
	}
	if info, err := os.Stdin.Stat(); err == nil && info.Mode()&os.ModeCharDevice == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return "", fmt.Errorf("no input: pass a file, pipe text on stdin, or use --paste")
}

// confirmed prompts unless --yes was passed. A declined prompt prints the
// aborted message and returns false with no error.
func confirmed(tr *i18n.Catalog, yes bool, prompt string) (bool, error) {
	if yes {
		return true, nil
	}
	if prompt == "" {
		prompt = tr.T("confirm_prompt")
	}
	ok, err := ui.Confirm(prompt)
	if err != nil {
		return false, err
	}
	if !ok {
		ui.Info(tr.T("aborted"))
	}
	return ok, nil
}

// showWelcomeOnce renders the quickstart the first time and flips the flag.
func showWelcomeOnce(s *store.Store) {
	if s.Config.WelcomeShown {
		return
	}
	ui.RenderMarkdown(welcomeText)
	fmt.Println()
	s.Config.WelcomeShown = true
	if err := s.SaveConfig(); err != nil {
		ui.Warning(fmt.Sprintf("could not update config: %v", err))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func tagLine(t []string) string {
	if len(t) == 0 {
		return "-"
	}
	return strings.Join(t, ", ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// ---------------------------------------------------------------------------
// init / doctor / config / version / locale

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:     "init",
		Short:   "Create the HERALD vault",
		Long:    "Creates the HERALD home directory with its config, databases, backups and locales.",
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			home := store.Home()
			if err := store.Init(home, force); err != nil {
				return err
			}
			s, err := loadStore()
			if err != nil {
				return err
			}
			if _, err := database.Ensure(s.DatabasesDir()); err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Vault initialized at %s", home))
			fmt.Println()
			showWelcomeOnce(s)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "reinitialize even if the vault already exists")
	return cmd
}

func doctorCmd() *cobra.Command {
	var fix bool
	cmd := &cobra.Command{
		Use:     "doctor",
		Short:   "Check vault health",
		GroupID: "core",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			home := store.Home()
			if fix {
				ui.CommandBanner("doctor", "repair mode")
				for _, msg := range store.FixIssues(home) {
					ui.Success(fmt.Sprintf("[FIXED] %s", msg))
				}
			} else {
				ui.CommandBanner("doctor", "health check")
			}

			issues := store.CheckHealth(home)
			if s, err := store.Load(home); err == nil {
				issues = append(issues, store.CheckDataIntegrity(s.DatabasesDir())...)
			}

			if len(issues) == 0 {
				ui.Success("No problems found")
				return
			}
			errCount := 0
			for _, issue := range issues {
				if issue.Severity == "error" {
					errCount++
					ui.Error(fmt.Sprintf("[ERR]  %s", issue.Message))
				} else {
					ui.Warning(fmt.Sprintf("[WARN] %s", issue.Message))
				}
			}
			fmt.Println()
			ui.Info(fmt.Sprintf("%d issue(s) found", len(issues)))
			if errCount > 0 {
				os.Exit(2)
			}
			os.Exit(1)
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "repair missing directories and files")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Show or change configuration",
		GroupID: "core",
	}
	cmd.AddCommand(configShowCmd(), configSetCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(s.Config)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func configSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a configuration value",
		Long: `Changes one configuration value. Keys:

  language             locale code, e.g. en
  ui.theme             dark or light
  databases.directory  override the databases location
  sort.by              name, created or modified
  sort.order           ascending or descending
  backup.auto          true or false
  backup.interval      off, 1m, 5m, 10m or 30m
  backup.max_backups   how many automatic backups to keep`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			if err := s.SetConfigValue(args[0], args[1]); err != nil {
				return err
			}
			tr := loadTranslator(s)
			ui.Success(tr.T("config_updated", i18n.Vars{"key": args[0], "value": args[1]}))
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Print the herald version",
		GroupID: "core",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("herald %s\n", buildVersion())
		},
	}
}

func localeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "locale",
		Short:   "List or switch display languages",
		GroupID: "core",
	}
	cmd.AddCommand(localeListCmd(), localeSetCmd())
	return cmd
}

func localeListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available languages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			tr := loadTranslator(s)
			rows := make([][]string, 0)
			for _, lang := range tr.Languages() {
				marker := " "
				if lang.Code == tr.Current() {
					marker = "*"
				}
				rows = append(rows, []string{marker, lang.Code, lang.Name, lang.Native})
			}
			ui.Table([]string{"", "CODE", "LANGUAGE", "NATIVE"}, rows)
			return nil
		},
	}
}

func localeSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <code>",
		Short: "Switch the display language",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			tr := loadTranslator(s)
			if err := tr.SetLanguage(args[0]); err != nil {
				return err
			}
			if err := s.SetConfigValue("language", args[0]); err != nil {
				return err
			}
			name := args[0]
			for _, lang := range tr.Languages() {
				if lang.Code == args[0] {
					name = lang.Name
				}
			}
			ui.Success(tr.T("locale_set", i18n.Vars{"name": name}))
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// stats / find

func statsCmd() *cobra.Command {
	var (
		dbName string
		asTree bool
		asMD   bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:     "stats",
		Short:   "Summarize a database",
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			reg, err := database.Ensure(s.DatabasesDir())
			if err != nil {
				return err
			}
			name := dbName
			if name == "" {
				name = reg.CurrentCharacterDB
			}
			st, err := database.BuildStats(s.DatabasesDir(), name)
			if err != nil {
				return err
			}
			switch {
			case asJSON:
				out, err := json.MarshalIndent(st, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
			case asMD:
				ui.RenderMarkdownReport(st.Markdown)
			default:
				ui.CommandBanner("stats", name)
				fmt.Println(st.ASCII)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbName, "db", "", "database to summarize (default: the active character database)")
	cmd.Flags().BoolVar(&asTree, "tree", false, "plain tree output (the default)")
	cmd.Flags().BoolVar(&asMD, "md", false, "render a markdown report")
	cmd.Flags().BoolVar(&asJSON, "json", false, "machine-readable JSON")
	return cmd
}

func findCmd() *cobra.Command {
	var (
		tagFilters []string
		kindStr    string
		full       bool
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "find [query]",
		Short: "Search characters and coats of arms",
		Long: `Searches the active databases. Matches rank exact name first, then
name substring, tag, and DNA or code body. With no query the most
recently modified assets are listed.`,
		GroupID: "core",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			tr := loadTranslator(s)
			q := search.Query{Tags: tagFilters, MaxHits: limit}
			if len(args) == 1 {
				q.Text = args[0]
			}
			switch kindStr {
			case "", "any":
				q.Kind = search.KindAny
			case "char", "character":
				q.Kind = search.KindCharacter
			case "coa":
				q.Kind = search.KindCoA
			default:
				return fmt.Errorf("kind must be character or coa")
			}
			r, err := search.Find(s.DatabasesDir(), q)
			if err != nil {
				return err
			}
			if len(r.Hits) == 0 {
				query := q.Text
				if query == "" {
					query = "your filters"
				}
				ui.EmptyState(tr.T("no_results", i18n.Vars{"query": query}))
				return nil
			}
			if q.Text != "" {
				ui.SectionHeader(tr.T("find_header", i18n.Vars{"query": q.Text}))
			}
			fmt.Print(search.FormatTerminal(r, full))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&tagFilters, "tag", nil, "require a tag (repeatable)")
	cmd.Flags().StringVar(&kindStr, "kind", "", "restrict to character or coa")
	cmd.Flags().BoolVar(&full, "full", false, "show ids, locations and timestamps")
	cmd.Flags().IntVar(&limit, "limit", 0, "cap the number of hits")
	return cmd
}

// ---------------------------------------------------------------------------
// dna

func dnaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dna",
		Short:   "Work with CK3 persistent DNA strings",
		GroupID: "assets",
	}
	cmd.AddCommand(dnaDuplicateCmd(), dnaValidateCmd())
	return cmd
}

func dnaDuplicateCmd() *cobra.Command {
	var (
		outPath  string
		toClip   bool
		fromClip bool
	)
	cmd := &cobra.Command{
		Use:   "duplicate [file]",
		Short: "Rewrite DNA so every dominant gene is duplicated",
		Long: `Rewrites a persistent DNA block so that in every gene the dominant
entry overwrites the recessive one. Color genes keep their first
coordinate pair; template genes keep their first name/value pair.
Everything outside the genes block passes through untouched.

Reads from a file, from stdin when piped (or with '-'), or from the
clipboard with --paste. The result goes to stdout unless --out or
--copy says otherwise.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileArg := ""
			if len(args) == 1 {
				fileArg = args[0]
			}
			text, err := readInput(fileArg, fromClip)
			if err != nil {
				return err
			}
			result, err := dna.Duplicate(text)
			if err != nil {
				return err
			}
			tr := translator()
			wrote := false
			if outPath != "" {
				if err := os.WriteFile(outPath, []byte(result), 0644); err != nil {
					return err
				}
				ui.Success(tr.T("dna_written", i18n.Vars{"path": outPath}))
				wrote = true
			}
			if toClip {
				if err := clipboard.WriteAll(result); err != nil {
					ui.Warning(fmt.Sprintf("clipboard unavailable: %v", err))
				} else {
					ui.Success(tr.T("dna_copied"))
					wrote = true
				}
			}
			if !wrote {
				fmt.Println(result)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the result to a file")
	cmd.Flags().BoolVar(&toClip, "copy", false, "copy the result to the clipboard")
	cmd.Flags().BoolVar(&fromClip, "paste", false, "read the DNA text from the clipboard")
	return cmd
}

func dnaValidateCmd() *cobra.Command {
	var fromClip bool
	cmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Check that a DNA string has a well-formed genes block",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileArg := ""
			if len(args) == 1 {
				fileArg = args[0]
			}
			text, err := readInput(fileArg, fromClip)
			if err != nil {
				return err
			}
			if ok, msg := dna.Validate(text); !ok {
				return fmt.Errorf("%s", msg)
			}
			ui.Success(translator().T("dna_valid"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromClip, "paste", false, "read the DNA text from the clipboard")
	return cmd
}

// ---------------------------------------------------------------------------
// char

func charCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "char",
		Aliases: []string{"character"},
		Short:   "Manage saved characters",
		GroupID: "assets",
	}
	cmd.AddCommand(
		charAddCmd(),
		charListCmd(),
		charShowCmd(),
		charUpdateCmd(),
		charPortraitCmd(),
		charRemoveCmd(),
		charMoveCmd(),
		charCompareCmd(),
	)
	return cmd
}

func charAddCmd() *cobra.Command {
	var (
		galleryName string
		dnaLiteral  string
		dnaFile     string
		fromClip    bool
		tagsCSV     string
		portrait    string
		crop        bool
	)
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Save a character",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			dir, err := activeCharDir(s)
			if err != nil {
				return err
			}

			text := dnaLiteral
			if text == "" && (dnaFile != "" || fromClip) {
				text, err = readInput(dnaFile, fromClip)
				if err != nil {
					return err
				}
			}

			var opts []gallery.CharacterOption
			if text != "" {
				if ok, msg := dna.Validate(text); !ok {
					ui.Warning(fmt.Sprintf("DNA looks malformed: %s", msg))
				}
				opts = append(opts, gallery.WithDNA(text))
			}
			if tagsCSV != "" {
				opts = append(opts, gallery.WithTags(tags.ParseList(tagsCSV)))
			}
			if portrait != "" {
				opts = append(opts, gallery.WithPortrait(portrait, crop))
			}

			c, err := gallery.AddCharacter(dir, galleryName, args[0], opts...)
			if err != nil {
				return err
			}
			tr := loadTranslator(s)
			ui.Success(tr.T("char_added", i18n.Vars{"name": c.Name, "gallery": galleryName}))
			ui.Detail("id", c.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&galleryName, "gallery", "g", "Default", "gallery to add into")
	cmd.Flags().StringVar(&dnaLiteral, "dna", "", "DNA text")
	cmd.Flags().StringVar(&dnaFile, "dna-file", "", "file holding the DNA text ('-' for stdin)")
	cmd.Flags().BoolVar(&fromClip, "paste", false, "read the DNA text from the clipboard")
	cmd.Flags().StringVar(&tagsCSV, "tags", "", "comma-separated tags")
	cmd.Flags().StringVar(&portrait, "portrait", "", "portrait image to attach")
	cmd.Flags().BoolVar(&crop, "crop", false, "center-crop the portrait to a square")
	return cmd
}

func charListCmd() *cobra.Command {
	var (
		galleryName string
		filter      string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List characters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			dir, err := activeCharDir(s)
			if err != nil {
				return err
			}
			tr := loadTranslator(s)

			shown := 0
			for _, g := range gallery.Load(dir) {
				if galleryName != "" && g.Name != galleryName {
					continue
				}
				chars := g.Characters
				if filter != "" {
					chars = gallery.FilterCharacters(chars, filter)
				}
				if len(chars) == 0 {
					continue
				}
				gallery.SortCharacters(chars, s.Config.Sort.By, s.Config.Sort.Order)
				ui.SectionHeader(fmt.Sprintf("%s (%d)", g.Name, len(chars)))
				rows := make([][]string, 0, len(chars))
				for _, c := range chars {
					rows = append(rows, []string{
						shortID(c.ID),
						c.Name,
						tagLine(c.Tags),
						yesNo(c.Image != ""),
						c.Modified.Format("2006-01-02 15:04"),
					})
				}
				ui.Table([]string{"ID", "NAME", "TAGS", "PORTRAIT", "MODIFIED"}, rows)
				shown += len(chars)
			}
			if shown == 0 {
				ui.EmptyState(tr.T("no_characters"))
				return nil
			}
			ui.Info(tr.T("char_count", i18n.Vars{"count": strconv.Itoa(shown)}))
			return nil
		},
	}
	cmd.Flags().StringVarP(&galleryName, "gallery", "g", "", "only this gallery")
	cmd.Flags().StringVar(&filter, "filter", "", "name, tag or DNA substring filter")
	return cmd
}

func charShowCmd() *cobra.Command {
	var (
		dnaOnly bool
		copyDNA bool
	)
	cmd := &cobra.Command{
		Use:   "show <name-or-id>",
		Short: "Show one character",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			dir, err := activeCharDir(s)
			if err != nil {
				return err
			}
			gname, c, err := gallery.FindCharacter(dir, args[0])
			if err != nil {
				return err
			}
			if dnaOnly {
				fmt.Println(c.DNA)
				return nil
			}

			ui.SectionHeader(c.Name)
			ui.KeyValue("id", ui.Bold(c.ID))
			ui.KeyValue("gallery", gname)
			ui.KeyValue("tags", tagLine(c.Tags))
			if c.Image != "" {
				ui.KeyValue("portrait", ui.Dim(gallery.ImagePath(dir, *c)))
			}
			ui.KeyValue("created", c.Created.Format(time.RFC3339))
			ui.KeyValue("modified", c.Modified.Format(time.RFC3339))
			if c.DNA != "" {
				fmt.Println()
				fmt.Println(c.DNA)
			}

			if copyDNA {
				if c.DNA == "" {
					return fmt.Errorf("%s has no DNA stored", c.Name)
				}
				tr := loadTranslator(s)
				if err := clipboard.WriteAll(c.DNA); err != nil {
					ui.Warning(fmt.Sprintf("clipboard unavailable: %v", err))
				} else {
					ui.Success(tr.T("dna_copied"))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dnaOnly, "dna", false, "print only the DNA text")
	cmd.Flags().BoolVar(&copyDNA, "copy-dna", false, "copy the DNA text to the clipboard")
	return cmd
}

func charUpdateCmd() *cobra.Command {
	var (
		newName string
		dnaLit  string
		dnaFile string
		tagsCSV string
	)
	cmd := &cobra.Command{
		Use:   "update <name-or-id>",
		Short: "Edit a character's name, DNA or tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			dir, err := activeCharDir(s)
			if err != nil {
				return err
			}
			gname, c, err := gallery.FindCharacter(dir, args[0])
			if err != nil {
				return err
			}

			var u gallery.Update
			if cmd.Flags().Changed("name") {
				u.Name = &newName
			}
			if cmd.Flags().Changed("dna") {
				u.DNA = &dnaLit
			} else if dnaFile != "" {
				text, err := readInput(dnaFile, false)
				if err != nil {
					return err
				}
				u.DNA = &text
			}
			if cmd.Flags().Changed("tags") {
				t := tags.ParseList(tagsCSV)
				u.Tags = &t
			}
			if u.Name == nil && u.DNA == nil && u.Tags == nil {
				return fmt.Errorf("nothing to update: pass --name, --dna, --dna-file or --tags")
			}

			if err := gallery.UpdateCharacter(dir, gname, c.ID, u); err != nil {
				return err
			}
			tr := loadTranslator(s)
			shown := c.Name
			if u.Name != nil {
				shown = *u.Name
			}
			ui.Success(tr.T("char_updated", i18n.Vars{"name": shown}))
			return nil
		},
	}
	cmd.Flags().StringVar(&newName, "name", "", "new name")
	cmd.Flags().StringVar(&dnaLit, "dna", "", "new DNA text (empty clears it)")
	cmd.Flags().StringVar(&dnaFile, "dna-file", "", "file holding the new DNA ('-' for stdin)")
	cmd.Flags().StringVar(&tagsCSV, "tags", "", "replacement comma-separated tags")
	return cmd
}

func charPortraitCmd() *cobra.Command {
	var crop bool
	cmd := &cobra.Command{
		Use:   "portrait <name-or-id> <image>",
		Short: "Attach or replace a character's portrait",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			dir, err := activeCharDir(s)
			if err != nil {
				return err
			}
			gname, c, err := gallery.FindCharacter(dir, args[0])
			if err != nil {
				return err
			}
			if err := gallery.SetPortrait(dir, gname, c.ID, args[1], crop); err != nil {
				return err
			}
			tr := loadTranslator(s)
			ui.Success(tr.T("portrait_set", i18n.Vars{"name": c.Name}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&crop, "crop", false, "center-crop the portrait to a square")
	return cmd
}

func charRemoveCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "remove <name-or-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a character and its portrait",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			dir, err := activeCharDir(s)
			if err != nil {
				return err
			}
			gname, c, err := gallery.FindCharacter(dir, args[0])
			if err != nil {
				return err
			}
			tr := loadTranslator(s)
			ok, err := confirmed(tr, yes, fmt.Sprintf("Delete %s from %s?", c.Name, gname))
			if err != nil || !ok {
				return err
			}
			if err := gallery.RemoveCharacter(dir, gname, c.ID); err != nil {
				return err
			}
			ui.Success(tr.T("char_removed", i18n.Vars{"name": c.Name}))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func charMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <name-or-id> <gallery>",
		Short: "Move a character to another gallery",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			dir, err := activeCharDir(s)
			if err != nil {
				return err
			}
			gname, c, err := gallery.FindCharacter(dir, args[0])
			if err != nil {
				return err
			}
			if err := gallery.MoveCharacter(dir, gname, args[1], c.ID); err != nil {
				return err
			}
			tr := loadTranslator(s)
			ui.Success(tr.T("char_moved", i18n.Vars{"name": c.Name, "gallery": args[1]}))
			return nil
		},
	}
}

var geneEntryRe = regexp.MustCompile(`(\w+)\s*=\s*\{([^{}]*)\}`)

// parseGenes pulls flat name={...} entries out of a DNA string. The genes
// wrapper itself never matches because its body contains braces.
func parseGenes(text string) map[string]string {
	genes := map[string]string{}
	for _, m := range geneEntryRe.FindAllStringSubmatch(text, -1) {
		genes[m[1]] = strings.Join(strings.Fields(m[2]), " ")
	}
	return genes
}

func headString(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func charCompareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <name-or-id> <name-or-id>",
		Short: "Compare two characters gene by gene",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			dir, err := activeCharDir(s)
			if err != nil {
				return err
			}
			ga, a, err := gallery.FindCharacter(dir, args[0])
			if err != nil {
				return err
			}
			gb, b, err := gallery.FindCharacter(dir, args[1])
			if err != nil {
				return err
			}

			ui.SectionHeader(fmt.Sprintf("%s vs %s", a.Name, b.Name))
			ui.Table([]string{"", a.Name, b.Name}, [][]string{
				{"gallery", ga, gb},
				{"tags", tagLine(a.Tags), tagLine(b.Tags)},
				{"portrait", yesNo(a.Image != ""), yesNo(b.Image != "")},
				{"dna bytes", strconv.Itoa(len(a.DNA)), strconv.Itoa(len(b.DNA))},
				{"dna head", headString(a.DNA, 32), headString(b.DNA, 32)},
			})

			left, right := parseGenes(a.DNA), parseGenes(b.DNA)
			if len(left) == 0 || len(right) == 0 {
				return nil
			}
			names := make([]string, 0, len(left))
			for name := range left {
				names = append(names, name)
			}
			for name := range right {
				if _, ok := left[name]; !ok {
					names = append(names, name)
				}
			}
			sort.Strings(names)

			same := 0
			rows := make([][]string, 0)
			for _, name := range names {
				lv, lok := left[name]
				rv, rok := right[name]
				switch {
				case lok && rok && lv == rv:
					same++
				case lok && rok:
					rows = append(rows, []string{name, lv, rv})
				case lok:
					rows = append(rows, []string{name, lv, "-"})
				default:
					rows = append(rows, []string{name, "-", rv})
				}
			}
			fmt.Println()
			if len(rows) == 0 {
				ui.Success(fmt.Sprintf("All %d genes match", same))
				return nil
			}
			ui.Table([]string{"GENE", a.Name, b.Name}, rows)
			ui.Info(fmt.Sprintf("%d genes match, %d differ", same, len(rows)))
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// coa

func coaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "coa",
		Short:   "Manage saved coats of arms",
		GroupID: "assets",
	}
	cmd.AddCommand(
		coaAddCmd(),
		coaListCmd(),
		coaShowCmd(),
		coaUpdateCmd(),
		coaRemoveCmd(),
		coaMoveCmd(),
		coaTagsCmd(),
	)
	return cmd
}

func coaAddCmd() *cobra.Command {
	var (
		collection string
		name       string
		tagsCSV    string
		image      string
		fromClip   bool
	)
	cmd := &cobra.Command{
		Use:   "add [code-file]",
		Short: "Save a coat of arms",
		Long: `Saves a CK3 coat-of-arms script block. The code comes from a file,
piped stdin (or '-'), or the clipboard with --paste. Without --name the
name is derived from the coa_rd_<dynasty>_<n> header.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			dir, err := activeCoaDir(s)
			if err != nil {
				return err
			}
			fileArg := ""
			if len(args) == 1 {
				fileArg = args[0]
			}
			code, err := readInput(fileArg, fromClip)
			if err != nil {
				return err
			}
			var tagList []string
			if tagsCSV != "" {
				tagList = tags.ParseList(tagsCSV)
			}
			c, err := coa.Add(dir, collection, name, code, tagList, image)
			if err != nil {
				return err
			}
			tr := loadTranslator(s)
			ui.Success(tr.T("coa_added", i18n.Vars{"name": c.Name, "collection": collection}))
			ui.Detail("id", c.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&collection, "collection", "c", "Default", "collection to add into")
	cmd.Flags().StringVar(&name, "name", "", "display name (default: derived from the code)")
	cmd.Flags().StringVar(&tagsCSV, "tags", "", "comma-separated tags")
	cmd.Flags().StringVar(&image, "image", "", "preview image to attach")
	cmd.Flags().BoolVar(&fromClip, "paste", false, "read the code from the clipboard")
	return cmd
}

func coaListCmd() *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List coats of arms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			dir, err := activeCoaDir(s)
			if err != nil {
				return err
			}
			tr := loadTranslator(s)

			shown := 0
			for _, col := range coa.Load(dir) {
				if collection != "" && col.Name != collection {
					continue
				}
				if len(col.Coats) == 0 {
					continue
				}
				ui.SectionHeader(fmt.Sprintf("%s (%d)", col.Name, len(col.Coats)))
				rows := make([][]string, 0, len(col.Coats))
				for _, c := range col.Coats {
					rows = append(rows, []string{
						shortID(c.ID),
						c.Name,
						tagLine(c.Tags),
						yesNo(c.HasImage),
						c.Modified.Format("2006-01-02 15:04"),
					})
				}
				ui.Table([]string{"ID", "NAME", "TAGS", "IMAGE", "MODIFIED"}, rows)
				shown += len(col.Coats)
			}
			if shown == 0 {
				ui.EmptyState(tr.T("no_coats"))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&collection, "collection", "c", "", "only this collection")
	return cmd
}

func coaShowCmd() *cobra.Command {
	var codeOnly bool
	cmd := &cobra.Command{
		Use:   "show <name-or-id>",
		Short: "Show one coat of arms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			dir, err := activeCoaDir(s)
			if err != nil {
				return err
			}
			cname, c, err := coa.Find(dir, args[0])
			if err != nil {
				return err
			}
			if codeOnly {
				fmt.Println(c.Code)
				return nil
			}
			ui.SectionHeader(c.Name)
			ui.KeyValue("id", ui.Bold(c.ID))
			ui.KeyValue("collection", cname)
			ui.KeyValue("tags", tagLine(c.Tags))
			if c.HasImage {
				ui.KeyValue("image", ui.Dim(coa.ImagePath(dir, c.ID)))
			}
			ui.KeyValue("created", c.Created.Format(time.RFC3339))
			ui.KeyValue("modified", c.Modified.Format(time.RFC3339))
			fmt.Println()
			fmt.Println(c.Code)
			return nil
		},
	}
	cmd.Flags().BoolVar(&codeOnly, "code", false, "print only the script code")
	return cmd
}

func coaUpdateCmd() *cobra.Command {
	var (
		newName  string
		codeLit  string
		codeFile string
		tagsCSV  string
		image    string
	)
	cmd := &cobra.Command{
		Use:   "update <name-or-id>",
		Short: "Edit a coat of arms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			dir, err := activeCoaDir(s)
			if err != nil {
				return err
			}
			cname, c, err := coa.Find(dir, args[0])
			if err != nil {
				return err
			}

			var u coa.Update
			if cmd.Flags().Changed("name") {
				u.Name = &newName
			}
			if cmd.Flags().Changed("code") {
				u.Code = &codeLit
			} else if codeFile != "" {
				text, err := readInput(codeFile, false)
				if err != nil {
					return err
				}
				u.Code = &text
			}
			if cmd.Flags().Changed("tags") {
				t := tags.ParseList(tagsCSV)
				u.Tags = &t
			}
			if u.Name == nil && u.Code == nil && u.Tags == nil && image == "" {
				return fmt.Errorf("nothing to update: pass --name, --code, --code-file, --tags or --image")
			}

			if u.Name != nil || u.Code != nil || u.Tags != nil {
				if err := coa.UpdateCoA(dir, cname, c.ID, u); err != nil {
					return err
				}
			}
			if image != "" {
				if err := coa.SetImage(dir, cname, c.ID, image); err != nil {
					return err
				}
			}
			tr := loadTranslator(s)
			shown := c.Name
			if u.Name != nil {
				shown = *u.Name
			}
			ui.Success(tr.T("coa_updated", i18n.Vars{"name": shown}))
			return nil
		},
	}
	cmd.Flags().StringVar(&newName, "name", "", "new name")
	cmd.Flags().StringVar(&codeLit, "code", "", "new script code")
	cmd.Flags().StringVar(&codeFile, "code-file", "", "file holding the new code ('-' for stdin)")
	cmd.Flags().StringVar(&tagsCSV, "tags", "", "replacement comma-separated tags")
	cmd.Flags().StringVar(&image, "image", "", "new preview image")
	return cmd
}

func coaRemoveCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "remove <name-or-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a coat of arms and its image",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			dir, err := activeCoaDir(s)
			if err != nil {
				return err
			}
			cname, c, err := coa.Find(dir, args[0])
			if err != nil {
				return err
			}
			tr := loadTranslator(s)
			ok, err := confirmed(tr, yes, "")
			if err != nil || !ok {
				return err
			}
			if err := coa.Remove(dir, cname, c.ID); err != nil {
				return err
			}
			ui.Success(tr.T("coa_removed", i18n.Vars{"name": c.Name}))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func coaMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <name-or-id> <collection>",
		Short: "Move a coat of arms to another collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			dir, err := activeCoaDir(s)
			if err != nil {
				return err
			}
			cname, c, err := coa.Find(dir, args[0])
			if err != nil {
				return err
			}
			if err := coa.Move(dir, cname, args[1], c.ID); err != nil {
				return err
			}
			tr := loadTranslator(s)
			ui.Success(tr.T("coa_moved", i18n.Vars{"name": c.Name, "collection": args[1]}))
			return nil
		},
	}
}

func coaTagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags [collection]",
		Short: "List tags used by coats of arms",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			dir, err := activeCoaDir(s)
			if err != nil {
				return err
			}
			names := coa.Names(dir)
			if len(args) == 1 {
				names = []string{args[0]}
			}
			seen := map[string]bool{}
			var all []string
			for _, n := range names {
				ts, err := coa.Tags(dir, n)
				if err != nil {
					return err
				}
				for _, t := range ts {
					if !seen[t] {
						seen[t] = true
						all = append(all, t)
					}
				}
			}
			if len(all) == 0 {
				ui.EmptyState("No tags yet.")
				return nil
			}
			sort.Strings(all)
			for _, t := range all {
				fmt.Println(t)
			}
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// gallery

func galleryCmd() *cobra.Command {
	var useCoA bool
	cmd := &cobra.Command{
		Use:     "gallery",
		Short:   "Manage character galleries and coat-of-arms collections",
		GroupID: "assets",
	}
	cmd.PersistentFlags().BoolVar(&useCoA, "coa", false, "operate on coat-of-arms collections instead")
	cmd.AddCommand(
		galleryListCmd(&useCoA),
		galleryCreateCmd(&useCoA),
		galleryRenameCmd(&useCoA),
		galleryRemoveCmd(&useCoA),
		galleryExportCmd(),
		galleryImportCmd(),
	)
	return cmd
}

func galleryListCmd(useCoA *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List galleries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			if *useCoA {
				dir, err := activeCoaDir(s)
				if err != nil {
					return err
				}
				rows := make([][]string, 0)
				for _, col := range coa.Load(dir) {
					rows = append(rows, []string{col.Name, strconv.Itoa(len(col.Coats)), col.Modified.Format("2006-01-02 15:04")})
				}
				ui.Table([]string{"COLLECTION", "COATS", "MODIFIED"}, rows)
				return nil
			}
			dir, err := activeCharDir(s)
			if err != nil {
				return err
			}
			rows := make([][]string, 0)
			for _, g := range gallery.Load(dir) {
				rows = append(rows, []string{g.Name, strconv.Itoa(len(g.Characters)), g.Modified.Format("2006-01-02 15:04")})
			}
			ui.Table([]string{"GALLERY", "CHARACTERS", "MODIFIED"}, rows)
			return nil
		},
	}
}

func galleryCreateCmd(useCoA *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a gallery",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			if *useCoA {
				dir, err := activeCoaDir(s)
				if err != nil {
					return err
				}
				if err := coa.Create(dir, args[0]); err != nil {
					return err
				}
			} else {
				dir, err := activeCharDir(s)
				if err != nil {
					return err
				}
				if err := gallery.Create(dir, args[0]); err != nil {
					return err
				}
			}
			tr := loadTranslator(s)
			ui.Success(tr.T("gallery_created", i18n.Vars{"name": args[0]}))
			return nil
		},
	}
}

func galleryRenameCmd(useCoA *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a gallery",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			if *useCoA {
				dir, err := activeCoaDir(s)
				if err != nil {
					return err
				}
				if err := coa.Rename(dir, args[0], args[1]); err != nil {
					return err
				}
			} else {
				dir, err := activeCharDir(s)
				if err != nil {
					return err
				}
				if err := gallery.Rename(dir, args[0], args[1]); err != nil {
					return err
				}
			}
			tr := loadTranslator(s)
			ui.Success(tr.T("gallery_renamed", i18n.Vars{"old": args[0], "new": args[1]}))
			return nil
		},
	}
}

func galleryRemoveCmd(useCoA *bool) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a gallery and everything in it",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			tr := loadTranslator(s)
			prompt := fmt.Sprintf("Delete gallery %s and every character in it?", args[0])
			if *useCoA {
				prompt = fmt.Sprintf("Delete collection %s and every coat of arms in it?", args[0])
			}
			ok, err := confirmed(tr, yes, prompt)
			if err != nil || !ok {
				return err
			}
			if *useCoA {
				dir, err := activeCoaDir(s)
				if err != nil {
					return err
				}
				if err := coa.Delete(dir, args[0]); err != nil {
					return err
				}
			} else {
				dir, err := activeCharDir(s)
				if err != nil {
					return err
				}
				if err := gallery.Delete(dir, args[0]); err != nil {
					return err
				}
			}
			ui.Success(tr.T("gallery_removed", i18n.Vars{"name": args[0]}))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func galleryExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <name> <dest-dir>",
		Short: "Export a gallery to a folder",
		Long:  "Writes the gallery's characters.json and portrait images into <dest-dir>/<name>.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			dir, err := activeCharDir(s)
			if err != nil {
				return err
			}
			ui.Status(fmt.Sprintf("Exporting %s...", args[0]))
			if err := gallery.Export(dir, args[0], args[1]); err != nil {
				return err
			}
			tr := loadTranslator(s)
			ui.Success(tr.T("gallery_exported", i18n.Vars{"name": args[0], "path": filepath.Join(args[1], args[0])}))
			return nil
		},
	}
}

func galleryImportCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "import <src-dir>",
		Short: "Import a previously exported gallery",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			dir, err := activeCharDir(s)
			if err != nil {
				return err
			}
			galleryName := name
			if galleryName == "" {
				galleryName = filepath.Base(filepath.Clean(args[0]))
			}
			ui.Status(fmt.Sprintf("Importing from %s...", args[0]))
			n, err := gallery.Import(dir, args[0], galleryName)
			if err != nil {
				return err
			}
			tr := loadTranslator(s)
			ui.Success(tr.T("gallery_imported", i18n.Vars{"name": galleryName}))
			ui.Detail("characters", strconv.Itoa(n))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "import under a different gallery name")
	return cmd
}

// ---------------------------------------------------------------------------
// db

func dbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "db",
		Aliases: []string{"database"},
		Short:   "Manage databases",
		GroupID: "vault",
	}
	cmd.AddCommand(
		dbListCmd(),
		dbCreateCmd(),
		dbRemoveCmd(),
		dbRenameCmd(),
		dbUseCmd(),
		dbMoveCmd(),
		dbStatsCmd(),
	)
	return cmd
}

func dbListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List databases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			reg, err := database.Ensure(s.DatabasesDir())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(reg.Databases))
			for _, info := range reg.Sorted() {
				var active []string
				if info.Name == reg.CurrentCharacterDB {
					active = append(active, "char")
				}
				if info.Name == reg.CurrentCoADB {
					active = append(active, "coa")
				}
				rows = append(rows, []string{
					info.Name,
					string(info.Type),
					strings.Join(active, "+"),
					info.Created.Format("2006-01-02"),
				})
			}
			ui.Table([]string{"NAME", "TYPE", "ACTIVE", "CREATED"}, rows)
			return nil
		},
	}
}

func dbCreateCmd() *cobra.Command {
	var typStr string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			typ := database.Type(typStr)
			if !typ.Valid() {
				return fmt.Errorf("type must be both, character or coa")
			}
			if err := database.Create(s.DatabasesDir(), args[0], typ); err != nil {
				return err
			}
			tr := loadTranslator(s)
			ui.Success(tr.T("db_created", i18n.Vars{"name": args[0]}))
			return nil
		},
	}
	cmd.Flags().StringVar(&typStr, "type", "both", "what the database holds: both, character or coa")
	return cmd
}

func dbRemoveCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a database and all its data",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			tr := loadTranslator(s)
			ok, err := confirmed(tr, yes, fmt.Sprintf("Delete database %s and all its data?", args[0]))
			if err != nil || !ok {
				return err
			}
			if err := database.Delete(s.DatabasesDir(), args[0]); err != nil {
				return err
			}
			ui.Success(tr.T("db_removed", i18n.Vars{"name": args[0]}))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func dbRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a database",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			if err := database.Rename(s.DatabasesDir(), args[0], args[1]); err != nil {
				return err
			}
			tr := loadTranslator(s)
			ui.Success(tr.T("db_renamed", i18n.Vars{"old": args[0], "new": args[1]}))
			return nil
		},
	}
}

func dbUseCmd() *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "use <name>",
		Short: "Make a database the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			if err := database.Use(s.DatabasesDir(), args[0], target); err != nil {
				return err
			}
			if err := s.AddRecentDatabase(args[0]); err != nil {
				ui.Warning(fmt.Sprintf("could not record recent database: %v", err))
			}
			tr := loadTranslator(s)
			ui.Success(tr.T("db_in_use", i18n.Vars{"name": args[0]}))
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "for", "", "character, coa or both (default: both)")
	return cmd
}

func dbMoveCmd() *cobra.Command {
	var (
		toDB   string
		fromDB string
		kind   string
	)
	cmd := &cobra.Command{
		Use:   "move <name-or-id>",
		Short: "Move a character or coat of arms to another database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			reg, err := database.Ensure(s.DatabasesDir())
			if err != nil {
				return err
			}
			src := fromDB
			if src == "" {
				if kind == "coa" {
					src = reg.CurrentCoADB
				} else {
					src = reg.CurrentCharacterDB
				}
			}
			if err := database.MoveItem(s.DatabasesDir(), src, toDB, kind, args[0]); err != nil {
				return err
			}
			tr := loadTranslator(s)
			ui.Success(tr.T("item_moved", i18n.Vars{"name": args[0], "db": toDB}))
			return nil
		},
	}
	cmd.Flags().StringVar(&toDB, "to", "", "destination database (required)")
	cmd.Flags().StringVar(&fromDB, "from", "", "source database (default: the active one)")
	cmd.Flags().StringVar(&kind, "kind", "character", "character or coa")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func dbStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats [name]",
		Short: "Summarize one database",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			reg, err := database.Ensure(s.DatabasesDir())
			if err != nil {
				return err
			}
			name := reg.CurrentCharacterDB
			if len(args) == 1 {
				name = args[0]
			}
			st, err := database.BuildStats(s.DatabasesDir(), name)
			if err != nil {
				return err
			}
			fmt.Println(st.ASCII)
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// backup

var labelRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "backup",
		Short:   "Create, restore and prune backups",
		GroupID: "vault",
	}
	cmd.AddCommand(
		backupCreateCmd(),
		backupListCmd(),
		backupRestoreCmd(),
		backupPruneCmd(),
		backupAutoCmd(),
	)
	return cmd
}

func backupCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create [label]",
		Short: "Zip the databases into a backup archive",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			label := "manual"
			if len(args) == 1 {
				label = args[0]
			}
			if !labelRe.MatchString(label) {
				return fmt.Errorf("label may only use letters, digits, '-' and '_'")
			}
			sp := ui.NewSpinner("Zipping databases...")
			path, err := backup.Create(s.BackupsDir(), s.DatabasesDir(), label)
			sp.Stop()
			if err != nil {
				return err
			}
			tr := loadTranslator(s)
			ui.Success(tr.T("backup_created", i18n.Vars{"path": path}))
			return nil
		},
	}
}

func backupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backup archives, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			archives, err := backup.List(s.BackupsDir())
			if err != nil {
				return err
			}
			tr := loadTranslator(s)
			if len(archives) == 0 {
				ui.EmptyState(tr.T("no_backups"))
				return nil
			}
			rows := make([][]string, 0, len(archives))
			for _, a := range archives {
				rows = append(rows, []string{a.Name, humanSize(a.Size), a.ModTime.Format("2006-01-02 15:04")})
			}
			ui.Table([]string{"ARCHIVE", "SIZE", "CREATED"}, rows)
			return nil
		},
	}
}

func backupRestoreCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "restore [archive]",
		Short: "Restore the databases from a backup",
		Long: `Replaces the databases directory with an archive's contents. The
current state is zipped to before_restore_<timestamp>.zip first. With
no argument an interactive picker lists the available backups.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			tr := loadTranslator(s)
			archives, err := backup.List(s.BackupsDir())
			if err != nil {
				return err
			}
			if len(archives) == 0 {
				ui.EmptyState(tr.T("no_backups"))
				return nil
			}

			var chosen *backup.Archive
			if len(args) == 1 {
				for i := range archives {
					if archives[i].Name == args[0] {
						chosen = &archives[i]
						break
					}
				}
				if chosen == nil {
					return fmt.Errorf("backup not found: %s", args[0])
				}
			} else {
				names := make([]string, len(archives))
				for i, a := range archives {
					names[i] = fmt.Sprintf("%s  (%s)", a.Name, humanSize(a.Size))
				}
				idx, err := ui.SelectOne("Restore which backup?", names)
				if err != nil {
					return err
				}
				if idx < 0 {
					ui.Info(tr.T("aborted"))
					return nil
				}
				chosen = &archives[idx]
			}

			ok, err := confirmed(tr, yes, fmt.Sprintf("Replace the current databases with %s?", chosen.Name))
			if err != nil || !ok {
				return err
			}
			ui.Status(fmt.Sprintf("Restoring %s...", chosen.Name))
			if err := backup.Restore(s.BackupsDir(), chosen.Path, s.DatabasesDir()); err != nil {
				return err
			}
			ui.Success(tr.T("backup_restored", i18n.Vars{"name": chosen.Name}))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func backupPruneCmd() *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove old automatic backups",
		Long:  "Removes the oldest automatic backups beyond the keep limit. Manual and pre-restore archives are never touched.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("keep") {
				keep = s.Config.Backup.MaxBackups
			}
			removed, err := backup.Prune(s.BackupsDir(), keep)
			if err != nil {
				return err
			}
			tr := loadTranslator(s)
			ui.Success(tr.T("backup_pruned", i18n.Vars{"count": strconv.Itoa(removed)}))
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 0, "automatic backups to keep (default: backup.max_backups)")
	return cmd
}

func backupAutoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auto <off|1m|5m|10m|30m>",
		Short: "Configure automatic backups",
		Long: `Sets the automatic backup interval. The scheduler itself runs inside
'herald watch'; off disables it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			if err := s.SetConfigValue("backup.interval", args[0]); err != nil {
				return err
			}
			if err := s.SetConfigValue("backup.auto", strconv.FormatBool(args[0] != "off")); err != nil {
				return err
			}
			tr := loadTranslator(s)
			if args[0] == "off" {
				ui.Success("Automatic backups disabled")
				return nil
			}
			ui.Success(tr.T("auto_backup_started", i18n.Vars{"interval": args[0]}))
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// watch

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the vault and react to outside edits",
		Long: `Runs until interrupted. Reports files changed outside herald,
re-checks character DNA when the data files change, and, when automatic
backups are enabled, zips the databases on the configured interval.`,
		GroupID: "vault",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			tr := loadTranslator(s)
			reg, err := database.Ensure(s.DatabasesDir())
			if err != nil {
				return err
			}

			charDir := database.CharacterDataDir(s.DatabasesDir(), reg.CurrentCharacterDB)
			coaDir := database.CoaDataDir(s.DatabasesDir(), reg.CurrentCoADB)
			dirs := []string{
				charDir, gallery.ImagesDir(charDir),
				coaDir, coa.ImagesDir(coaDir),
			}
			existing := 0
			for _, d := range dirs {
				if st, err := os.Stat(d); err == nil && st.IsDir() {
					existing++
				}
			}

			w, err := watch.New(dirs...)
			if err != nil {
				return err
			}
			w.OnChange = func(e watch.Event) {
				ui.Logger.Info("Outside change", "op", e.Op, "path", e.Path)
				if filepath.Base(e.Path) == "characters.json" && e.Op != watch.OpDelete {
					reportBadDNA(e.Path)
				}
			}
			w.OnError = func(err error) {
				ui.Warning(fmt.Sprintf("watch: %v", err))
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := w.Start(ctx); err != nil {
				return err
			}
			ui.Success(tr.T("watch_started", i18n.Vars{"count": strconv.Itoa(existing)}))

			var sched *backup.Scheduler
			if s.Config.Backup.Auto {
				if interval := backup.ParseInterval(s.Config.Backup.Interval); interval > 0 {
					sched = backup.NewScheduler(s.BackupsDir(), s.DatabasesDir(), interval, s.Config.Backup.MaxBackups)
					sched.OnBackup = func(path string, err error) {
						if err != nil {
							ui.Warning(fmt.Sprintf("auto-backup: %v", err))
							return
						}
						ui.Logger.Info("Automatic backup created", "path", path)
						ui.Notify("herald", "Automatic backup created")
					}
					if err := sched.Start(ctx); err != nil {
						ui.Warning(fmt.Sprintf("auto-backup: %v", err))
						sched = nil
					} else {
						ui.Info(tr.T("auto_backup_started", i18n.Vars{"interval": s.Config.Backup.Interval}))
					}
				}
			}

			<-ctx.Done()
			w.Stop()
			if sched != nil {
				sched.Stop()
			}

			st := w.Stats()
			fmt.Println()
			ui.Info(tr.T("watch_stopped"))
			ui.Detail("created", ui.Green(strconv.Itoa(st.Created)))
			ui.Detail("modified", ui.Yellow(strconv.Itoa(st.Modified)))
			ui.Detail("deleted", ui.Red(strconv.Itoa(st.Deleted)))
			return nil
		},
	}
}

// reportBadDNA warns about characters whose DNA lost its genes block after
// an outside edit.
func reportBadDNA(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	data = []byte(strings.TrimPrefix(string(data), "\uFEFF"))
	var gs []gallery.Gallery
	if err := json.Unmarshal(data, &gs); err != nil {
		ui.Warning(fmt.Sprintf("%s is no longer valid JSON", path))
		return
	}
	for _, g := range gs {
		for _, c := range g.Characters {
			if c.DNA == "" {
				continue
			}
			if ok, msg := dna.Validate(c.DNA); !ok {
				ui.Warning(fmt.Sprintf("%s (%s): %s", c.Name, g.Name, msg))
			}
		}
	}
}

// ---------------------------------------------------------------------------
// completion

func completionCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "completion <bash|zsh|fish>",
		Short:     "Generate shell completion scripts",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"bash", "zsh", "fish"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			}
			return nil
		},
	}
}

const welcomeText = `# Welcome to HERALD

Your vault is ready. The short tour:

    herald dna duplicate portrait.txt    rewrite DNA so dominant genes breed true
    herald char add "Ragnar" --dna-file p.txt   save a character
    herald coa add banner.txt --name "Raven"    save a coat of arms
    herald find raven                           search everything
    herald backup create                        zip the databases
    herald doctor                               check vault health

Run 'herald <command> --help' for details, and 'herald locale list' to
switch languages.`
