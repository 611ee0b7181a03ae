package i18n

// builtinEnglish is the catalog shipped with the binary. Locale files can
// override any of these keys; en.json overrides the English strings
// themselves.
func builtinEnglish() map[string]string {
	return map[string]string{
		"app_tagline": "Asset manager for Crusader Kings III modding",

		"dna_written": "Result written to {path}",
		"dna_copied":  "Result copied to the clipboard",
		"dna_valid":   "DNA looks structurally valid",

		"char_added":    "Added character {name} to {gallery}",
		"char_updated":  "Updated character {name}",
		"char_removed":  "Removed character {name}",
		"char_moved":    "Moved character {name} to {gallery}",
		"portrait_set":  "Portrait updated for {name}",
		"char_count":    "{count} characters",
		"no_characters": "No characters found",

		"coa_added":   "Added coat of arms {name} to {collection}",
		"coa_updated": "Updated coat of arms {name}",
		"coa_removed": "Removed coat of arms {name}",
		"coa_moved":   "Moved coat of arms {name} to {collection}",
		"no_coats":    "No coats of arms found",

		"gallery_created":  "Created gallery {name}",
		"gallery_renamed":  "Renamed gallery {old} to {new}",
		"gallery_removed":  "Removed gallery {name}",
		"gallery_exported": "Exported gallery {name} to {path}",
		"gallery_imported": "Imported gallery {name}",

		"db_created":  "Created database {name}",
		"db_removed":  "Removed database {name}",
		"db_renamed":  "Renamed database {old} to {new}",
		"db_in_use":   "Now using database {name}",
		"item_moved":  "Moved {name} to database {db}",
		"no_results":  "Nothing matched {query}",
		"find_header": "Results for {query}",

		"backup_created":      "Backup written to {path}",
		"backup_restored":     "Vault restored from {name}",
		"backup_pruned":       "Removed {count} old automatic backups",
		"auto_backup_started": "Automatic backups every {interval}",
		"no_backups":          "No backups yet",

		"watch_started": "Watching {count} directories for changes",
		"watch_stopped": "Watcher stopped",

		"config_updated": "Set {key} to {value}",
		"locale_set":     "Language switched to {name}",

		"confirm_prompt": "Are you sure?",
		"aborted":        "Aborted",
	}
}
