package sandbox

import (
	"slices"
	"strings"
	"unicode"
)

// SupportedLanguages lists the languages accepted by the sandbox service.
var SupportedLanguages = []string{
	"python", "cpp", "nodejs", "go", "go_test", "java", "php", "csharp",
	"bash", "typescript", "sql", "rust", "cuda", "lua", "R", "perl", "D_ut",
	"ruby", "scala", "julia", "pytest", "junit", "kotlin_script", "jest",
	"verilog", "python_gpu", "lean", "swift", "racket",
}

// IsSupported reports whether language is in SupportedLanguages.
func IsSupported(language string) bool {
	return slices.Contains(SupportedLanguages, language)
}

// ExtractCode returns the code inside the first markdown fence of
// completion. A ```python fence wins over any other; for a generic fence a
// first line made only of letters (a language tag) is dropped.
func ExtractCode(completion string) (string, error) {
	const fence = "```"

	if idx := strings.LastIndex(completion, fence+"python"); idx >= 0 {
		code := completion[idx+len(fence+"python"):]
		code, _, _ = strings.Cut(code, fence)
		return code, nil
	}

	parts := strings.Split(completion, fence)
	if len(parts) < 2 {
		return "", ErrMissingCodeBlock
	}

	code := parts[1]
	if first, rest, ok := strings.Cut(code, "\n"); ok && isWord(strings.TrimSpace(first)) {
		code = rest
	}
	return code, nil
}

func isWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
