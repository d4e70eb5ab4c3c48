package watcher

import (
	"strings"

	"github.com/fsnotify/fsnotify"
)

// kindFromOp maps an fsnotify op to a Kind. When several bits are set the
// first of create, remove, rename, modify wins. Chmod counts as modify.
func kindFromOp(op fsnotify.Op) Kind {
	switch {
	case op.Has(fsnotify.Create):
		return KindCreate
	case op.Has(fsnotify.Remove):
		return KindRemove
	case op.Has(fsnotify.Rename):
		return KindRename
	case op.Has(fsnotify.Write), op.Has(fsnotify.Chmod):
		return KindModify
	default:
		return KindOther
	}
}

// mergeKind folds the next raw kind for a path into its pending kind.
//
//	create + create/modify  -> create
//	remove|rename + create/modify -> modify (path was replaced)
//	any + other             -> unchanged
//	otherwise               -> next
func mergeKind(previous, next Kind) Kind {
	switch {
	case previous == "":
		return next
	case next == KindOther:
		return previous
	case previous == KindCreate && (next == KindCreate || next == KindModify):
		return KindCreate
	case (previous == KindRemove || previous == KindRename) && (next == KindCreate || next == KindModify):
		return KindModify
	default:
		return next
	}
}

// ParseKind reads a kind name, ignoring case and surrounding space.
func ParseKind(value string) (Kind, bool) {
	switch kind := Kind(strings.ToLower(strings.TrimSpace(value))); kind {
	case KindCreate, KindModify, KindRemove, KindRename, KindOther:
		return kind, true
	default:
		return "", false
	}
}
