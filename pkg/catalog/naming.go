package catalog

import (
	"strings"
	"unicode"

	"github.com/ajitpratap0/zfits/pkg/errors"
)

// Output naming follows the convention of existing containers and must not
// drift: "R1.CameraEvent" is written as type tag R1_CAMERA_EVENT into a
// table called "Events".

var packagePrefixes = map[string]string{
	"DataModel": "DL0",
	"L0":        "DL0",
}

var tagRenames = map[string]string{
	"DL0_CAMERA_RUN_HEADER":   "DL0_RUN_HEADER",
	"R1_CAMERA_CONFIGURATION": "R1_CAMERA_CONFIG",
}

var tableRenames = map[string]string{
	"CameraConfiguration": "CameraConfig",
	"CameraRunHeader":     "RunHeader",
}

// TypeTag derives the external message type tag for typeName.
func TypeTag(typeName string) (string, error) {
	pkg, class, err := ParseTypeName(typeName)
	if err != nil {
		return "", err
	}

	prefix, ok := packagePrefixes[pkg]
	if !ok {
		prefix = strings.ToUpper(pkg)
	}
	tag := prefix + "_" + UpperSnake(class)
	if renamed, ok := tagRenames[tag]; ok {
		tag = renamed
	}
	return tag, nil
}

// TableName derives the output table (extension) name for typeName.
func TableName(typeName string) (string, error) {
	_, class, err := ParseTypeName(typeName)
	if err != nil {
		return "", err
	}
	if strings.HasSuffix(class, "Event") {
		return "Events", nil
	}
	if renamed, ok := tableRenames[class]; ok {
		return renamed, nil
	}
	return class, nil
}

// UpperSnake converts CamelCase to UPPER_SNAKE_CASE. Runs of capitals are
// kept together: "LSTCameraEvent" becomes "LST_CAMERA_EVENT".
func UpperSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)

	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// TypeForTag returns the catalog type whose TypeTag is tag.
func (c *Catalog) TypeForTag(tag string) (string, error) {
	c.tagsOnce.Do(func() {
		c.tags = make(map[string]string)
		for _, name := range c.MessageTypes() {
			if t, err := TypeTag(name); err == nil {
				c.tags[t] = name
			}
		}
	})
	name, ok := c.tags[tag]
	if !ok {
		return "", errors.Newf(errors.ErrorTypeUnknownMessageType, "no message type for tag %q", tag)
	}
	return name, nil
}
