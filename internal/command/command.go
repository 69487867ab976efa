// Package command recognizes the bot's text commands.
package command

import (
	"errors"
	"math"
	"strings"
)

// Command prefixes as typed by users.
const (
	LookupPrefix = "/postno"
	UploadName   = "/upload"
	StartName    = "/start"
	HelpName     = "/help"
)

// maxLookupDigits bounds the digit run of a lookup command.
const maxLookupDigits = 5

// digitCeiling caps parsed digit runs so oversized numbers stay out of range
// instead of overflowing.
const digitCeiling = math.MaxInt32

var (
	// ErrUsage marks an upload with the wrong number of arguments.
	ErrUsage = errors.New("upload expects exactly two arguments")

	// ErrNotDigits marks an upload whose post number argument is not a digit run.
	ErrNotDigits = errors.New("post number must be digits")
)

// Kind tags the parsed command variant.
type Kind int

const (
	Unrecognized Kind = iota
	Start
	Lookup
	Upload
)

func (k Kind) String() string {
	switch k {
	case Start:
		return "start"
	case Lookup:
		return "lookup"
	case Upload:
		return "upload"
	default:
		return "unrecognized"
	}
}

// Command is the result of parsing one line of text.
// PostNumber is set for Lookup and well-formed Upload; URL for well-formed Upload.
// Err is set for an Upload whose arguments are malformed; the command is still
// an Upload so authorization can be checked before argument shape.
type Command struct {
	Kind       Kind
	PostNumber int
	URL        string
	Err        error
}

// Parser parses command text. When username is set, commands addressed as
// "/upload@username" are accepted too.
type Parser struct {
	username string
}

// NewParser creates a parser for a bot with the given username (may be empty).
func NewParser(username string) *Parser {
	return &Parser{username: strings.TrimPrefix(username, "@")}
}

// Parse recognizes text as one of the supported commands.
func (p *Parser) Parse(text string) Command {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return Command{Kind: Unrecognized}
	}

	if rest, ok := strings.CutPrefix(text, LookupPrefix); ok {
		return parseLookup(rest)
	}

	fields := strings.Fields(text)
	name, ok := p.commandName(fields[0])
	if !ok {
		return Command{Kind: Unrecognized}
	}

	switch name {
	case StartName, HelpName:
		return Command{Kind: Start}
	case UploadName:
		return parseUpload(fields[1:])
	default:
		return Command{Kind: Unrecognized}
	}
}

// commandName strips a "@username" suffix addressed to this bot. Commands
// addressed to another bot are rejected.
func (p *Parser) commandName(word string) (string, bool) {
	name, target, addressed := strings.Cut(word, "@")
	if !addressed {
		return name, true
	}
	if p.username == "" || !strings.EqualFold(target, p.username) {
		return "", false
	}
	return name, true
}

func parseLookup(digits string) Command {
	if len(digits) == 0 || len(digits) > maxLookupDigits || !isDigits(digits) {
		return Command{Kind: Unrecognized}
	}
	return Command{Kind: Lookup, PostNumber: parseDigits(digits)}
}

func parseUpload(args []string) Command {
	if len(args) != 2 {
		return Command{Kind: Upload, Err: ErrUsage}
	}
	if !isDigits(args[0]) {
		return Command{Kind: Upload, Err: ErrNotDigits}
	}
	return Command{Kind: Upload, PostNumber: parseDigits(args[0]), URL: args[1]}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// parseDigits converts an ASCII digit run, saturating at digitCeiling.
func parseDigits(s string) int {
	var n int64
	for i := 0; i < len(s); i++ {
		n = n*10 + int64(s[i]-'0')
		if n >= digitCeiling {
			return digitCeiling
		}
	}
	return int(n)
}
