package serialize

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Filter lists attribute paths, relative to one record, that must not leave
// the process. Paths use gjson dot syntax, e.g. "user.password".
type Filter struct {
	Exclude []string
}

// ProjectFilter hides the raw identifier lists, the raw owner reference and
// the embedded owner's password.
var ProjectFilter = Filter{Exclude: []string{
	"taskUUIDs",
	"issueUUIDs",
	"patchNoteUUIDs",
	"userUUID",
	"user.password",
}}

// UserFilter hides the password.
var UserFilter = Filter{Exclude: []string{"password"}}

// Apply removes the excluded paths from doc. A top-level array is treated as
// a list of records and every element is filtered.
func (f Filter) Apply(doc []byte) ([]byte, error) {
	if len(f.Exclude) == 0 {
		return doc, nil
	}
	root := gjson.ParseBytes(doc)
	var prefixes []string
	if root.IsArray() {
		n := int(root.Get("#").Int())
		for i := 0; i < n; i++ {
			prefixes = append(prefixes, strconv.Itoa(i)+".")
		}
	} else {
		prefixes = []string{""}
	}
	out := doc
	var err error
	for _, prefix := range prefixes {
		for _, path := range f.Exclude {
			full := prefix + path
			if !gjson.GetBytes(out, full).Exists() {
				continue
			}
			out, err = sjson.DeleteBytes(out, full)
			if err != nil {
				return nil, fmt.Errorf("filter %s: %w", full, err)
			}
		}
	}
	return out, nil
}

// ExternalJSON marshals v and applies f.
func ExternalJSON(v any, f Filter) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return f.Apply(b)
}
