package marc

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PascalRepond/rero-mef/internal/model"
)

// ErrNoTransformation is returned when a MARC record yields no usable
// JSON document (missing pid, unusable shape).
var ErrNoTransformation = errors.New("no transformation possible")

// Transformer converts one source's MARC records into agent documents.
type Transformer interface {
	// Entity names the source the transformer handles.
	Entity() model.Entity
	// Transform builds the agent document. Deleted source records come
	// back with the "deleted" field set rather than as an error.
	Transform(rec *Record) (model.Record, error)
}

// TransformerFor returns the transformer for an agent entity.
func TransformerFor(e model.Entity) (Transformer, error) {
	switch e {
	case model.EntityGnd:
		return &GndTransformer{}, nil
	case model.EntityIdref:
		return &IdrefTransformer{}, nil
	case model.EntityRero:
		return &ReroTransformer{}, nil
	}
	return nil, fmt.Errorf("no transformer for entity %q", e)
}

// newAgentDocument seeds a document shared by all transformers.
func newAgentDocument(pid string) model.Record {
	return model.Record{
		"pid":  pid,
		"type": "bf:Person",
	}
}

// joinNonEmpty joins parts with sep, skipping empties.
func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// deletedNow marks a record as deleted with the current time.
func deletedNow(rec model.Record) {
	rec.MarkDeleted(time.Now())
}
