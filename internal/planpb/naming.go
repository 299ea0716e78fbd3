package planpb

import (
	"strings"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// nameEnumValue prefixes a value with its enum name, as in STAGE_VERTEX_INPUT.
func nameEnumValue(enumName, value string) protoreflect.Name {
	return protoreflect.Name(strings.ToUpper(snakeCase(enumName) + "_" + snakeCase(value)))
}

// snakeCase converts a string from CamelCase or PascalCase to snake_case.
// Existing underscores are kept.
func snakeCase(s string) string {
	var sb strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' && s[i-1] != '_' {
			sb.WriteByte('_')
		}
		sb.WriteRune(r)
	}
	return strings.ToLower(sb.String())
}

func comment(desc string) protobuilder.Comments {
	if desc == "" {
		return protobuilder.Comments{}
	}
	lines := strings.Split(desc, "\n")
	for i, line := range lines {
		lines[i] = " " + line
	}
	return protobuilder.Comments{LeadingComment: strings.Join(lines, "\n") + "\n"}
}
