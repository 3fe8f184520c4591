package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that a unique index rejected an insert.
var ErrDuplicate = errors.New("duplicate")

// duplicateMarkers are the lowercase fragments the supported drivers put in
// unique-violation messages that gorm does not translate.
var duplicateMarkers = []string{
	"unique constraint",         // sqlite: UNIQUE constraint failed
	"constraint failed: unique", // sqlite, extended codes
	"duplicate key",             // postgres
	"23505",                     // postgres SQLSTATE
}

func isDuplicate(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, gorm.ErrDuplicatedKey), errors.Is(err, ErrDuplicate):
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range duplicateMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

func isNotFound(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }
