package theme

import (
	"os"
	"strings"
)

// Symbols used across the TUI. InitSymbols swaps them for ASCII on
// terminals that cannot show Unicode.
var (
	SymbolSuccess  = "✓"
	SymbolError    = "✗"
	SymbolWarning  = "⚠"
	SymbolSpinner  = "⏳"
	SymbolArrowR   = "→"
	SymbolBullet   = "•"
	SymbolEllipsis = "…"
	SymbolUser     = "You"
	SymbolBot      = "Assistant"
)

// SymbolSet is one complete set of symbols.
type SymbolSet struct {
	Success, Error, Warning, Spinner, ArrowR, Bullet, Ellipsis string
}

var unicodeSymbols = SymbolSet{
	Success:  "✓",
	Error:    "✗",
	Warning:  "⚠",
	Spinner:  "⏳",
	ArrowR:   "→",
	Bullet:   "•",
	Ellipsis: "…",
}

var asciiSymbols = SymbolSet{
	Success:  "[OK]",
	Error:    "[ERR]",
	Warning:  "[!]",
	Spinner:  "[...]",
	ArrowR:   "->",
	Bullet:   "*",
	Ellipsis: "...",
}

// UnicodeSupported reports whether the terminal likely renders Unicode.
// CHATLINE_ASCII_SYMBOLS=1 forces ASCII.
func UnicodeSupported() bool {
	if v := os.Getenv("CHATLINE_ASCII_SYMBOLS"); v == "1" || strings.EqualFold(v, "true") {
		return false
	}
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		val := strings.ToLower(os.Getenv(key))
		if val == "" {
			continue
		}
		return strings.Contains(val, "utf-8") || strings.Contains(val, "utf8")
	}
	return true
}

// InitSymbols applies the symbol set matching the terminal.
func InitSymbols() {
	set := unicodeSymbols
	if !UnicodeSupported() {
		set = asciiSymbols
	}
	SymbolSuccess = set.Success
	SymbolError = set.Error
	SymbolWarning = set.Warning
	SymbolSpinner = set.Spinner
	SymbolArrowR = set.ArrowR
	SymbolBullet = set.Bullet
	SymbolEllipsis = set.Ellipsis
}

func init() {
	InitSymbols()
}
