package dna

import (
	"errors"
	"strings"
	"testing"
)

const sampleDNA = `ruler_designer_7={
	type=male
	genes={
		hair_color={ 14 243 180 90 }
		skin_color={ 155 89 201 34 }
		eye_color={ 169 117 88 205 }
		gene_chin_forward={ "chin_forward_pos" 127 "chin_forward_neg" 30 }
		gene_chin_height={ "chin_height_pos" 201 "chin_height_pos" 201 }
		gene_eye_angle={ "eye_angle_neg" 88 "eye_angle_pos" 14 }
	}
}`

func TestDuplicate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "hair color",
			input: "genes={ hair_color={ 10 20 30 40 } }",
			want:  "genes={ hair_color={ 10 20 10 20 } }",
		},
		{
			name:  "skin color",
			input: "genes={ skin_color={ 1 2 3 4 } }",
			want:  "genes={ skin_color={ 1 2 1 2 } }",
		},
		{
			name:  "eye color",
			input: "genes={ eye_color={ 255 0 9 9 } }",
			want:  "genes={ eye_color={ 255 0 255 0 } }",
		},
		{
			name:  "anonymous morph pair",
			input: `genes={ { "head" 5 "nose" 9 } }`,
			want:  `genes={ { "head" 5 "head" 5 } }`,
		},
		{
			name:  "named morph gene keeps its name",
			input: `genes={ gene_chin_forward={ "chin_forward_pos" 127 "chin_forward_neg" 30 } }`,
			want:  `genes={ gene_chin_forward={ "chin_forward_pos" 127 "chin_forward_pos" 127 } }`,
		},
		{
			name:  "already duplicated color is a fixed point",
			input: "genes={ hair_color={ 10 20 10 20 } }",
			want:  "genes={ hair_color={ 10 20 10 20 } }",
		},
		{
			name:  "nested sibling block is untouched",
			input: "genes={ a={ x=1 } hair_color={ 1 2 3 4 } }",
			want:  "genes={ a={ x=1 } hair_color={ 1 2 1 2 } }",
		},
		{
			name:  "spacing around keyword is normalized",
			input: "genes  =  { hair_color={ 1 2 3 4 } }",
			want:  "genes={ hair_color={ 1 2 1 2 } }",
		},
		{
			name:  "color gene with three values is skipped",
			input: "genes={ hair_color={ 1 2 3 } }",
			want:  "genes={ hair_color={ 1 2 3 } }",
		},
		{
			name:  "morph entry with three pairs is skipped",
			input: `genes={ { "a" 1 "b" 2 "c" 3 } }`,
			want:  `genes={ { "a" 1 "b" 2 "c" 3 } }`,
		},
		{
			name:  "non-numeric values are skipped",
			input: `genes={ { "a" one "b" two } }`,
			want:  `genes={ { "a" one "b" two } }`,
		},
		{
			name:  "multiple genes in one block",
			input: `genes={ hair_color={ 1 2 3 4 } { "a" 1 "b" 2 } eye_color={ 5 6 7 8 } }`,
			want:  `genes={ hair_color={ 1 2 1 2 } { "a" 1 "a" 1 } eye_color={ 5 6 5 6 } }`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Duplicate(tt.input)
			if err != nil {
				t.Fatalf("Duplicate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Duplicate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDuplicatePreservesSurroundingText(t *testing.T) {
	input := "prefix keeps tabs\t\nruler={ genes={ hair_color={ 1 2 3 4 } } }\nsuffix"
	got, err := Duplicate(input)
	if err != nil {
		t.Fatalf("Duplicate() error = %v", err)
	}

	if !strings.HasPrefix(got, "prefix keeps tabs\t\nruler={ ") {
		t.Errorf("prefix was altered: %q", got)
	}
	if !strings.HasSuffix(got, " }\nsuffix") {
		t.Errorf("suffix was altered: %q", got)
	}
	if !strings.Contains(got, "genes={ hair_color={ 1 2 1 2 } }") {
		t.Errorf("genes block not rewritten in place: %q", got)
	}
}

func TestDuplicateFullCharacter(t *testing.T) {
	got, err := Duplicate(sampleDNA)
	if err != nil {
		t.Fatalf("Duplicate() error = %v", err)
	}

	wants := []string{
		"hair_color={ 14 243 14 243 }",
		"skin_color={ 155 89 155 89 }",
		"eye_color={ 169 117 169 117 }",
		`gene_chin_forward={ "chin_forward_pos" 127 "chin_forward_pos" 127 }`,
		`gene_chin_height={ "chin_height_pos" 201 "chin_height_pos" 201 }`,
		`gene_eye_angle={ "eye_angle_neg" 88 "eye_angle_neg" 88 }`,
	}
	for _, w := range wants {
		if !strings.Contains(got, w) {
			t.Errorf("output missing %q", w)
		}
	}

	if !strings.HasPrefix(got, "ruler_designer_7={\n\ttype=male\n") {
		t.Errorf("wrapper text was altered: %q", got)
	}
	if !strings.HasSuffix(got, "}") {
		t.Errorf("closing brace of wrapper lost: %q", got)
	}
}

func TestDuplicateIdempotent(t *testing.T) {
	once, err := Duplicate(sampleDNA)
	if err != nil {
		t.Fatalf("first Duplicate() error = %v", err)
	}
	twice, err := Duplicate(once)
	if err != nil {
		t.Fatalf("second Duplicate() error = %v", err)
	}
	if once != twice {
		t.Errorf("Duplicate is not a fixed point:\nonce:  %q\ntwice: %q", once, twice)
	}
}

func TestDuplicateErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty input", "", ErrNoGenesSection},
		{"no genes keyword", "portrait_info={ age=30 }", ErrNoGenesSection},
		{"keyword without block", "genes=5", ErrNoGenesSection},
		{"missing closing brace", "genes={ hair_color={ 1 2 3 4 }", ErrUnbalancedBraces},
		{"deeply unbalanced", "genes={ a={ b={ } }", ErrUnbalancedBraces},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Duplicate(tt.input)
			if !errors.Is(err, tt.want) {
				t.Errorf("Duplicate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestErrorMessageText(t *testing.T) {
	// The editor shows these strings verbatim; they are part of the contract.
	if got := ErrNoGenesSection.Error(); got != "Could not find 'genes' section in input" {
		t.Errorf("ErrNoGenesSection text = %q", got)
	}
	if got := ErrUnbalancedBraces.Error(); got != "Could not find closing brace for 'genes' section" {
		t.Errorf("ErrUnbalancedBraces text = %q", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantOK  bool
		wantMsg string
	}{
		{"valid block", "genes={ hair_color={ 1 2 3 4 } }", true, ""},
		{"valid with wrapper", sampleDNA, true, ""},
		{"empty", "", false, "DNA text is empty"},
		{"whitespace only", "  \n\t ", false, "DNA text is empty"},
		{"no genes section", "some other text", false, "Could not find 'genes' section in input"},
		{"unbalanced braces", "genes={ hair_color={ 1 2 3 4 }", false, "Could not find closing brace for 'genes' section"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, msg := Validate(tt.input)
			if ok != tt.wantOK || msg != tt.wantMsg {
				t.Errorf("Validate() = (%v, %q), want (%v, %q)", ok, msg, tt.wantOK, tt.wantMsg)
			}
		})
	}
}
