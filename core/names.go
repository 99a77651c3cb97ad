package core

import (
	"fmt"
	"strings"

	"orbyte.systems/orbyte/schema"
)

const forbiddenNameChars = `<>:"/\|?*`

var reservedNames = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "com2": true, "com3": true, "com4": true, "com5": true,
	"com6": true, "com7": true, "com8": true, "com9": true,
	"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true, "lpt5": true,
	"lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
}

// NormalizeScriptName validates a user-entered script name and returns
// the canonical file name carrying ext. The extension is appended when
// absent; a name that already ends in ext keeps it. Errors wrap
// schema.ErrInvalidName.
func NormalizeScriptName(raw, ext string, max int) (schema.ScriptName, error) {
	stem := raw
	if len(raw) > len(ext) && strings.EqualFold(raw[len(raw)-len(ext):], ext) {
		stem = raw[:len(raw)-len(ext)]
	}
	if strings.TrimSpace(stem) == "" {
		return "", fmt.Errorf("%w: name is empty", schema.ErrInvalidName)
	}
	if strings.HasPrefix(stem, " ") || strings.HasSuffix(stem, " ") {
		return "", fmt.Errorf("%w: leading or trailing space", schema.ErrInvalidName)
	}
	if strings.HasPrefix(stem, ".") || strings.HasSuffix(stem, ".") {
		return "", fmt.Errorf("%w: leading or trailing period", schema.ErrInvalidName)
	}
	if i := strings.IndexAny(stem, forbiddenNameChars); i >= 0 {
		return "", fmt.Errorf("%w: character %q is not allowed", schema.ErrInvalidName, stem[i])
	}
	for _, r := range stem {
		if r < 0x20 {
			return "", fmt.Errorf("%w: control characters are not allowed", schema.ErrInvalidName)
		}
	}
	if reservedNames[strings.ToLower(stem)] {
		return "", fmt.Errorf("%w: %q is a reserved device name", schema.ErrInvalidName, stem)
	}
	name := stem + ext
	if max > 0 && len(name) > max {
		return "", fmt.Errorf("%w: name exceeds %d characters", schema.ErrInvalidName, max)
	}
	return schema.ScriptName(name), nil
}

// untitledName picks the first free untitled_N name, starting with
// plain "untitled".
func untitledName(taken func(schema.ScriptName) bool, ext string) schema.ScriptName {
	name := schema.ScriptName("untitled" + ext)
	for i := 2; taken(name); i++ {
		name = schema.ScriptName(fmt.Sprintf("untitled_%d%s", i, ext))
	}
	return name
}
