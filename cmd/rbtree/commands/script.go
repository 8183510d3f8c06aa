package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/redblack/pkg/observability"
)

// ErrBadOperation is returned for a script token that is not +K, -K or ?K.
var ErrBadOperation = errors.New("bad operation")

// OpKind is the kind of a scripted tree operation.
type OpKind byte

// Operation kinds, named after their script prefix.
const (
	OpInsert OpKind = '+'
	OpDelete OpKind = '-'
	OpFind   OpKind = '?'
)

// String returns the observability name of the operation kind.
func (kind OpKind) String() string {
	switch kind {
	case OpInsert:
		return observability.OpInsert
	case OpDelete:
		return observability.OpDelete
	case OpFind:
		return observability.OpFind
	default:
		return "unknown"
	}
}

// Op is one scripted tree operation.
type Op struct {
	Kind OpKind
	Key  int
}

// ParseOp parses a single +K, -K or ?K token. Keys may be negative, as in "--3".
func ParseOp(token string) (Op, error) {
	if len(token) < 2 { //nolint:mnd // prefix and at least one digit.
		return Op{}, fmt.Errorf("%w: %q", ErrBadOperation, token)
	}

	kind := OpKind(token[0])
	if kind != OpInsert && kind != OpDelete && kind != OpFind {
		return Op{}, fmt.Errorf("%w: %q", ErrBadOperation, token)
	}

	key, err := strconv.Atoi(token[1:])
	if err != nil {
		return Op{}, fmt.Errorf("%w: %q: %w", ErrBadOperation, token, err)
	}

	return Op{Kind: kind, Key: key}, nil
}

// ParseOps parses a list of tokens.
func ParseOps(tokens []string) ([]Op, error) {
	ops := make([]Op, 0, len(tokens))

	for _, token := range tokens {
		op, err := ParseOp(token)
		if err != nil {
			return nil, err
		}

		ops = append(ops, op)
	}

	return ops, nil
}

// ReadScript reads whitespace separated tokens. A '#' starts a comment that
// runs to the end of the line.
func ReadScript(reader io.Reader) ([]Op, error) {
	var tokens []string

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line, _, _ := strings.Cut(scanner.Text(), "#")
		tokens = append(tokens, strings.Fields(line)...)
	}

	err := scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	return ParseOps(tokens)
}
