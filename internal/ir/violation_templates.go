package ir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hanpama/rendergraph/internal/language"
)

// Common reusable violation constructors (template helpers)
// NOTE: Keep messages stable to avoid breaking snapshot tests.

func violationInvalidName(what, name string, pos *language.Position) *Violation {
	return NewViolation(KindInvalidName, pos,
		fmt.Sprintf("%s name %q must match [A-Za-z0-9_]{1,128}", what, name),
		"name", name)
}

func violationInvalidKeyword(what, value string, pos *language.Position) *Violation {
	return NewViolation(KindInvalidKeyword, pos,
		fmt.Sprintf("Unknown %s %q", what, value),
		"keyword", what, "value", value)
}

func violationDuplicateDeclaration(pkg, name string, pos *language.Position) *Violation {
	return NewViolation(KindDuplicateDeclaration, pos,
		fmt.Sprintf("Duplicate declaration %q in package %q", name, pkg),
		"package", pkg, "name", name)
}

func violationDuplicateName(what, name, owner string, pos *language.Position) *Violation {
	return NewViolation(KindDuplicateName, pos,
		fmt.Sprintf("Duplicate %s %q in %q", what, name, owner),
		"name", name, "owner", owner)
}

func violationNonexistentPackage(pkg string, pos *language.Position) *Violation {
	return NewViolation(KindNonexistentPackage, pos,
		fmt.Sprintf("Imported package %q not found", pkg),
		"package", pkg)
}

func violationPackageNotImported(pkg, ref string, pos *language.Position) *Violation {
	return NewViolation(KindPackageNotImported, pos,
		fmt.Sprintf("Type reference %q uses package %q which is not imported", ref, pkg),
		"package", pkg, "reference", ref)
}

func violationNonexistentType(ref string, pos *language.Position) *Violation {
	return NewViolation(KindNonexistentType, pos,
		fmt.Sprintf("Type %q not found", ref),
		"reference", ref)
}

func violationDeclarationNotAType(ref string, pos *language.Position) *Violation {
	return NewViolation(KindDeclarationNotAType, pos,
		fmt.Sprintf("%q names an operation, not a type", ref),
		"reference", ref)
}

func violationNonexistentMember(ref, typeName, member string, pos *language.Position) *Violation {
	return NewViolation(KindNonexistentSubresource, pos,
		fmt.Sprintf("Type reference %q: %q has no member %q", ref, typeName, member),
		"reference", ref, "type", typeName, "member", member)
}

func violationCircularTypeDependency(cycle []string, pos *language.Position) *Violation {
	path := strings.Join(cycle, " -> ")
	return NewViolation(KindCircularTypeDependency, pos,
		"Circular type dependency: "+path,
		"cycle", path)
}

func violationEmptyComposite(typeName string, pos *language.Position) *Violation {
	return NewViolation(KindEmptyCompositeType, pos,
		fmt.Sprintf("Type %q must have at least one member", typeName),
		"type", typeName)
}

func violationAttachmentNotPrimitive(typeName, attachment, ref string, pos *language.Position) *Violation {
	return NewViolation(KindNotAPrimitiveResource, pos,
		fmt.Sprintf("Attachment %q of render target %q must be a primitive image, got %q", attachment, typeName, ref),
		"type", typeName, "attachment", attachment, "reference", ref)
}

func violationAttachmentNotImage(typeName, attachment, ref string, pos *language.Position) *Violation {
	return NewViolation(KindPrimitiveMustBeImage, pos,
		fmt.Sprintf("Attachment %q of render target %q must be an image, got buffer %q", attachment, typeName, ref),
		"type", typeName, "attachment", attachment, "reference", ref)
}

func violationInvalidTree(typeName string, err error, pos *language.Position) *Violation {
	return NewViolation(KindDuplicateName, pos,
		fmt.Sprintf("Type %q: %v", typeName, err),
		"type", typeName)
}

func violationNotComposite(port PortRef, assertion string, pos *language.Position) *Violation {
	return NewViolation(KindNotACompositeResource, pos,
		fmt.Sprintf("Port %s has a primitive type; %s must not be keyed by path", port, assertion),
		"port", port.String(), "assertion", assertion)
}

func violationNonexistentSubresource(port PortRef, assertion, path string, pos *language.Position) *Violation {
	return NewViolation(KindNonexistentSubresource, pos,
		fmt.Sprintf("Port %s: %s path %q does not name a primitive resource", port, assertion, path),
		"port", port.String(), "assertion", assertion, "path", path)
}

func violationLayoutOnNonImage(port PortRef, assertion, path string, pos *language.Position) *Violation {
	if path == "" {
		return NewViolation(KindPrimitiveMustBeImage, pos,
			fmt.Sprintf("Port %s: %s requires an image resource", port, assertion),
			"port", port.String(), "assertion", assertion)
	}
	return NewViolation(KindPrimitiveMustBeImage, pos,
		fmt.Sprintf("Port %s: %s path %q is not an image", port, assertion, path),
		"port", port.String(), "assertion", assertion, "path", path)
}

func violationConsumerEnsuresLayout(port PortRef, pos *language.Position) *Violation {
	return NewViolation(KindConsumerMustNotEnsureLayout, pos,
		fmt.Sprintf("Consumer port %s must not ensure an image layout", port),
		"port", port.String())
}

func violationInvalidPortReference(ref string, err error, pos *language.Position) *Violation {
	return NewViolation(KindInvalidPortReference, pos,
		fmt.Sprintf("Invalid connection endpoint %q: %v", ref, err),
		"endpoint", ref)
}

func violationNonexistentOperation(ref PortRef, pos *language.Position) *Violation {
	return NewViolation(KindNonexistentOperation, pos,
		fmt.Sprintf("Operation %q not found for endpoint %s", ref.Operation, ref),
		"operation", string(ref.Operation), "endpoint", ref.String())
}

func violationNonexistentPort(ref PortRef, pos *language.Position) *Violation {
	return NewViolation(KindNonexistentPort, pos,
		fmt.Sprintf("Operation %q has no port %q", ref.Operation, ref.Port),
		"operation", string(ref.Operation), "port", string(ref.Port))
}

func violationWrongDirection(ref PortRef, role Role, side string, pos *language.Position) *Violation {
	return NewViolation(KindPortWrongDirection, pos,
		fmt.Sprintf("Port %s with role %s cannot be a connection %s", ref, role, side),
		"port", ref.String(), "role", string(role), "side", side)
}

func violationAlreadyConnected(ref PortRef, side string, pos *language.Position) *Violation {
	return NewViolation(KindPortAlreadyConnected, pos,
		fmt.Sprintf("Port %s already has an %s connection", ref, side),
		"port", ref.String(), "side", side)
}

func violationTypeIncompatible(from, to PortRef, fromType, toType string, pos *language.Position) *Violation {
	return NewViolation(KindPortTypeIncompatible, pos,
		fmt.Sprintf("Cannot connect %s (%s) to %s (%s): types differ", from, fromType, to, toType),
		"from", from.String(), "to", to.String(), "fromType", fromType, "toType", toType)
}

func violationCyclicConnection(from, to PortRef, via []Name, pos *language.Position) *Violation {
	names := make([]string, len(via))
	for i, n := range via {
		names[i] = string(n)
	}
	return NewViolation(KindPortCyclicConnection, pos,
		fmt.Sprintf("Connection %s -> %s creates a cycle through %s", from, to, strings.Join(names, " -> ")),
		"from", from.String(), "to", to.String())
}

func violationWrongCardinality(p *Port, actual int) *Violation {
	return NewViolation(KindPortWrongCardinality, p.Position,
		fmt.Sprintf("%s port %s must have %d connection(s), has %d", p.Role, p.Ref(), p.Role.Cardinality(), actual),
		"port", p.Ref().String(), "role", string(p.Role),
		"expected", strconv.Itoa(p.Role.Cardinality()), "actual", strconv.Itoa(actual))
}
