package ir

import (
	"fmt"

	"github.com/hanpama/rendergraph/internal/language"
)

// Kind classifies a Violation.
type Kind string

const (
	KindNonexistentType               Kind = "nonexistent-type"
	KindNonexistentOperation          Kind = "nonexistent-operation"
	KindNonexistentPort               Kind = "nonexistent-port"
	KindNonexistentSubresource        Kind = "nonexistent-subresource"
	KindNonexistentPackage            Kind = "nonexistent-package"
	KindNotAPrimitiveResource         Kind = "not-a-primitive-resource"
	KindNotACompositeResource         Kind = "not-a-composite-resource"
	KindDeclarationNotAType           Kind = "declaration-not-a-type"
	KindPackageNotImported            Kind = "package-not-imported"
	KindCircularTypeDependency        Kind = "circular-type-dependency"
	KindPortTypeIncompatible          Kind = "port-type-incompatible"
	KindPortCyclicConnection          Kind = "port-cyclic-connection"
	KindPortAlreadyConnected          Kind = "port-already-connected"
	KindPortWrongCardinality          Kind = "port-wrong-cardinality"
	KindPortWrongDirection            Kind = "port-wrong-direction"
	KindPrimitiveMustBeImage          Kind = "primitive-must-be-image"
	KindProducerMustEnsureImageLayout Kind = "producer-must-ensure-image-layout"
	KindConsumerMustNotEnsureLayout   Kind = "consumer-must-not-ensure-image-layout"
	KindInvalidKeyword                Kind = "invalid-keyword"
	KindInvalidName                   Kind = "invalid-name"
	KindInvalidPortReference          Kind = "invalid-port-reference"
	KindDuplicateName                 Kind = "duplicate-name"
	KindDuplicateDeclaration          Kind = "duplicate-declaration"
	KindEmptyCompositeType            Kind = "empty-composite-type"
	KindCrossQueueSubmissionCycle     Kind = "cross-queue-submission-cycle"
)

type Violation struct {
	Kind    Kind              `json:"kind"`
	Message string            `json:"message"`
	Attrs   map[string]string `json:"attrs,omitempty"`
	File    string            `json:"file,omitempty"`
	Line    int               `json:"line,omitempty"`
	Column  int               `json:"column,omitempty"`
}

func (v *Violation) String() string {
	s := fmt.Sprintf("[%s] %s", v.Kind, v.Message)
	if v.File != "" {
		s += fmt.Sprintf(" %s:%d:%d", v.File, v.Line, v.Column)
	}
	return s
}

type ValidationError []*Violation

func (e ValidationError) Error() string {
	msg := "violations found:\n"
	for _, v := range e {
		msg += "- " + v.String() + "\n"
	}
	return msg
}

// First returns the earliest reported violation.
func (e ValidationError) First() *Violation {
	if len(e) == 0 {
		return nil
	}
	return e[0]
}

// Has reports whether any violation is of the given kind.
func (e ValidationError) Has(kind Kind) bool {
	for _, v := range e {
		if v.Kind == kind {
			return true
		}
	}
	return false
}

// NewViolation is the core primitive used by all template helpers. attrs are
// key/value pairs.
func NewViolation(kind Kind, pos *language.Position, message string, attrs ...string) *Violation {
	v := &Violation{Kind: kind, Message: message}
	if len(attrs) > 0 {
		v.Attrs = make(map[string]string, len(attrs)/2)
		for i := 0; i+1 < len(attrs); i += 2 {
			v.Attrs[attrs[i]] = attrs[i+1]
		}
	}
	if pos != nil {
		v.File = pos.File
		v.Line = pos.Line
		v.Column = pos.Column
	}
	return v
}
