package runner

import "strings"

// Language is a runtime the upstream knows how to execute.
type Language struct {
	Runtime  string   `json:"runtime" yaml:"runtime"`
	Version  string   `json:"version" yaml:"version"`
	Filename string   `json:"filename" yaml:"filename"`
	Aliases  []string `json:"aliases" yaml:"aliases"`
}

var languages = []Language{
	{Runtime: "python", Version: "3.10.0", Filename: "main.py", Aliases: []string{"python"}},
	{Runtime: "java", Version: "15.0.2", Filename: "Main.java", Aliases: []string{"java"}},
	{Runtime: "cpp", Version: "10.2.0", Filename: "main.cpp", Aliases: []string{"cpp", "c++"}},
}

var languageIndex = func() map[string]Language {
	idx := make(map[string]Language)
	for _, l := range languages {
		for _, a := range l.Aliases {
			idx[a] = l
		}
	}
	return idx
}()

const unsupportedLanguageDetail = "Unsupported language. Use 'python', 'java', or 'cpp'."

// Resolve maps a case-insensitive language name to its runtime, version and
// source filename.
func Resolve(name string) (Language, error) {
	l, ok := languageIndex[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Language{}, &Error{Kind: KindUnsupportedLanguage, Detail: unsupportedLanguageDetail}
	}
	return l, nil
}

// Languages returns the supported languages in a stable order.
func Languages() []Language {
	out := make([]Language, len(languages))
	copy(out, languages)
	return out
}
