package models

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type BookKind string

const (
	BookKindLocal  BookKind = "local"
	BookKindOnline BookKind = "online"
)

// BookRef identifies a book in exactly one identifier space. A local book is
// identified by its generated ID. A cached catalog book is identified by its
// OnlineID, and optionally by the InternalID of its cache row.
type BookRef struct {
	Kind       BookKind
	LocalID    string
	InternalID int
	OnlineID   int
}

func LocalRef(id string) BookRef {
	return BookRef{Kind: BookKindLocal, LocalID: id}
}

func OnlineRef(internalID, onlineID int) BookRef {
	return BookRef{Kind: BookKindOnline, InternalID: internalID, OnlineID: onlineID}
}

func (r BookRef) IsLocal() bool {
	return r.Kind == BookKindLocal
}

func (r BookRef) IsOnline() bool {
	return r.Kind == BookKindOnline
}

// Key is the value stored in the book_key column of per-book tables. Online
// books are keyed by OnlineID so that rows outlive cache eviction.
func (r BookRef) Key() string {
	if r.IsLocal() {
		return r.LocalID
	}
	return strconv.Itoa(r.OnlineID)
}

func (r BookRef) Validate() error {
	switch r.Kind {
	case BookKindLocal:
		if r.LocalID == "" {
			return errors.New("local book reference is missing its id")
		}
	case BookKindOnline:
		if r.OnlineID <= 0 {
			return errors.New("online book reference is missing its online id")
		}
	default:
		return errors.Errorf("unknown book kind %q", r.Kind)
	}
	return nil
}

// String renders the ref as local:<id>, online:<onlineId> or
// online:<onlineId>:<internalId>.
func (r BookRef) String() string {
	if r.IsLocal() {
		return string(BookKindLocal) + ":" + r.LocalID
	}
	s := string(BookKindOnline) + ":" + strconv.Itoa(r.OnlineID)
	if r.InternalID != 0 {
		s += ":" + strconv.Itoa(r.InternalID)
	}
	return s
}

func ParseBookRef(s string) (BookRef, error) {
	parts := strings.Split(s, ":")
	switch BookKind(parts[0]) {
	case BookKindLocal:
		if len(parts) != 2 || parts[1] == "" {
			return BookRef{}, errors.Errorf("invalid local book reference %q", s)
		}
		return LocalRef(parts[1]), nil
	case BookKindOnline:
		if len(parts) < 2 || len(parts) > 3 {
			return BookRef{}, errors.Errorf("invalid online book reference %q", s)
		}
		onlineID, err := strconv.Atoi(parts[1])
		if err != nil || onlineID <= 0 {
			return BookRef{}, errors.Errorf("invalid online id in book reference %q", s)
		}
		ref := OnlineRef(0, onlineID)
		if len(parts) == 3 {
			internalID, err := strconv.Atoi(parts[2])
			if err != nil || internalID <= 0 {
				return BookRef{}, errors.Errorf("invalid internal id in book reference %q", s)
			}
			ref.InternalID = internalID
		}
		return ref, nil
	}
	return BookRef{}, errors.Errorf("unknown book reference %q", s)
}

func (r BookRef) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *BookRef) UnmarshalText(text []byte) error {
	ref, err := ParseBookRef(string(text))
	if err != nil {
		return err
	}
	*r = ref
	return nil
}
