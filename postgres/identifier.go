// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

import (
	"regexp"
	"strings"

	"github.com/datalode/conveyor/queue"
)

// Table and index names incorporating the namespace prefix are
// interpolated into SQL and DDL text, not passed as parameters, so
// the namespace must be validated against a whitelist before any
// statement is built from it.

// maxIdentifierLength is the PostgreSQL NAMEDATALEN-1 limit.  The
// namespace must leave room for the longest generated suffix.
const maxIdentifierLength = 63

// longestSuffix is the longest string appended to the namespace when
// forming a table name.
const longestSuffix = "_worker_heartbeats"

var identifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// reservedWords are SQL keywords that cannot serve as a namespace even
// though they match the identifier pattern.
var reservedWords = map[string]struct{}{
	"all": {}, "and": {}, "any": {}, "as": {}, "asc": {},
	"between": {}, "by": {}, "case": {}, "check": {}, "column": {},
	"create": {}, "current_date": {}, "current_time": {}, "default": {},
	"delete": {}, "desc": {}, "distinct": {}, "drop": {}, "else": {},
	"end": {}, "false": {}, "for": {}, "foreign": {}, "from": {},
	"grant": {}, "group": {}, "having": {}, "in": {}, "index": {},
	"insert": {}, "into": {}, "is": {}, "join": {}, "like": {},
	"limit": {}, "not": {}, "null": {}, "on": {}, "or": {},
	"order": {}, "primary": {}, "references": {}, "select": {},
	"set": {}, "table": {}, "then": {}, "to": {}, "true": {},
	"union": {}, "unique": {}, "update": {}, "user": {},
	"values": {}, "where": {}, "with": {},
}

// ValidIdentifier checks that a namespace is safe to interpolate into
// SQL text: it matches [A-Za-z][A-Za-z0-9_]*, is not a reserved word,
// and is short enough that every derived table name fits in
// PostgreSQL's identifier limit.
func ValidIdentifier(name string) error {
	if name == "" {
		return queue.ErrBadIdentifier{Identifier: name, Reason: "empty"}
	}
	if !identifierPattern.MatchString(name) {
		return queue.ErrBadIdentifier{Identifier: name, Reason: "must match [A-Za-z][A-Za-z0-9_]*"}
	}
	if _, reserved := reservedWords[strings.ToLower(name)]; reserved {
		return queue.ErrBadIdentifier{Identifier: name, Reason: "reserved word"}
	}
	if len(name)+len(longestSuffix) > maxIdentifierLength {
		return queue.ErrBadIdentifier{Identifier: name, Reason: "too long"}
	}
	return nil
}
