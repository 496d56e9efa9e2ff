package render

import (
	"bytes"
	_ "embed"
	"fmt"
	"go/format"
	"path"
	"strings"
	"text/template"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/rewind/pkg/schema"
	"github.com/platinummonkey/rewind/pkg/schemagen"
)

//go:embed schemas.go.tmpl
var schemasTemplate string

var tmpl = template.Must(template.New("schemas.go").Parse(schemasTemplate))

// FileName is the name of the file rendered for each version
const FileName = "schemas.go"

// GeneratedFile is one rendered source file
type GeneratedFile struct {
	Path    string
	Content []byte
	Size    int64
}

// Renderer turns projected schemas into Go type declarations
type Renderer struct {
	log *logrus.Logger
}

// NewRenderer creates a renderer
func NewRenderer(log *logrus.Logger) *Renderer {
	if log == nil {
		log = logrus.New()
	}
	return &Renderer{log: log}
}

// RenderAll renders head and every version, each into its own package
// directory: head/ and vYYYY_MM_DD/.
func (r *Renderer) RenderAll(res *schemagen.Result) ([]GeneratedFile, error) {
	files := make([]GeneratedFile, 0, len(res.Versions())+1)
	head, err := r.Render(res.Head(), "head")
	if err != nil {
		return nil, fmt.Errorf("head: %w", err)
	}
	files = append(files, head)
	for _, d := range res.Versions() {
		v, _ := res.Version(d)
		f, err := r.Render(v, PackageName(v))
		if err != nil {
			return nil, fmt.Errorf("version %s: %w", d, err)
		}
		files = append(files, f)
	}
	return files, nil
}

// PackageName returns the package a version renders into
func PackageName(v *schemagen.VersionSchemas) string {
	if v.Version().IsZero() {
		return "head"
	}
	return "v" + strings.ReplaceAll(v.Version().String(), "-", "_")
}

// Render emits one formatted Go file declaring every enum and schema of v
func (r *Renderer) Render(v *schemagen.VersionSchemas, pkg string) (GeneratedFile, error) {
	data, err := buildFile(v, pkg)
	if err != nil {
		return GeneratedFile{}, err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return GeneratedFile{}, fmt.Errorf("failed to execute template: %w", err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return GeneratedFile{}, fmt.Errorf("failed to format generated source: %w", err)
	}
	r.log.WithFields(logrus.Fields{
		"package": pkg,
		"structs": len(data.Structs),
		"enums":   len(data.Enums),
	}).Debug("Rendered schemas")
	return GeneratedFile{
		Path:    path.Join(pkg, FileName),
		Content: src,
		Size:    int64(len(src)),
	}, nil
}

type fileData struct {
	Package string
	Version string
	Enums   []enumData
	Structs []structData
}

type enumData struct {
	Name    string
	Base    string
	Doc     []string
	Members []memberData
}

type memberData struct {
	Name  string
	Value string
}

type structData struct {
	Name   string
	Doc    []string
	Embeds []string
	Fields []fieldData
}

type fieldData struct {
	Name string
	Type string
	Tag  string
	Doc  []string
}

func buildFile(v *schemagen.VersionSchemas, pkg string) (*fileData, error) {
	version := "head"
	if !v.Version().IsZero() {
		version = v.Version().String()
	}
	data := &fileData{Package: pkg, Version: version}
	taken := make(map[string]schema.ID)
	claim := func(name string, id schema.ID) error {
		if other, ok := taken[name]; ok {
			return fmt.Errorf("%w: %s is used by both %q and %q", ErrDuplicateName, name, other, id)
		}
		taken[name] = id
		return nil
	}

	for _, id := range v.EnumIDs() {
		e, _ := v.Enum(id)
		ed, err := buildEnum(e)
		if err != nil {
			return nil, err
		}
		if err := claim(ed.Name, id); err != nil {
			return nil, err
		}
		data.Enums = append(data.Enums, ed)
	}
	for _, id := range v.SchemaIDs() {
		s, _ := v.Schema(id)
		sd := structData{
			Name: GoName(s.Name),
			Doc:  []string{fmt.Sprintf("%s is %s as served in version %s.", GoName(s.Name), id, version)},
		}
		if err := claim(sd.Name, id); err != nil {
			return nil, err
		}
		for _, p := range s.Parents {
			sd.Embeds = append(sd.Embeds, GoName(v.Name(p)))
		}
		for _, f := range s.Fields {
			sd.Fields = append(sd.Fields, buildField(v, f))
		}
		data.Structs = append(data.Structs, sd)
	}
	return data, nil
}

func buildEnum(e *schema.Enum) (enumData, error) {
	name := GoName(e.Name)
	ed := enumData{Name: name, Doc: []string{fmt.Sprintf("%s is the %s enum.", name, e.ID)}}
	for _, m := range e.Members {
		var lit, base string
		switch val := m.Value.(type) {
		case string:
			lit, base = fmt.Sprintf("%q", val), "string"
		case int, int32, int64:
			lit, base = fmt.Sprintf("%d", val), "int"
		case float64:
			if val != float64(int64(val)) {
				return enumData{}, fmt.Errorf("%w: %s.%s", ErrUnsupportedEnum, e.ID, m.Name)
			}
			lit, base = fmt.Sprintf("%d", int64(val)), "int"
		default:
			return enumData{}, fmt.Errorf("%w: %s.%s", ErrUnsupportedEnum, e.ID, m.Name)
		}
		if ed.Base != "" && ed.Base != base {
			return enumData{}, fmt.Errorf("%w: %s", ErrUnsupportedEnum, e.ID)
		}
		ed.Base = base
		ed.Members = append(ed.Members, memberData{Name: name + GoName(m.Name), Value: lit})
	}
	if ed.Base == "" {
		ed.Base = "string"
	}
	return ed, nil
}

func buildField(v *schemagen.VersionSchemas, f *schema.Field) fieldData {
	fd := fieldData{Name: GoName(f.Name), Type: goType(v, f.Type)}
	tag := f.JSONName()
	if !f.Required() {
		tag += ",omitempty"
	}
	fd.Tag = fmt.Sprintf(`json:"%s"`, tag)
	if validate, ok := f.Get(schema.AttrValidate); ok {
		fd.Tag += fmt.Sprintf(` validate:"%v"`, validate)
	}
	if desc, ok := f.Get(schema.AttrDescription); ok {
		fd.Doc = append(fd.Doc, fmt.Sprint(desc))
	}
	if dep, ok := f.Get(schema.AttrDeprecated); ok && dep == true {
		fd.Doc = append(fd.Doc, "Deprecated: this field will be removed.")
	}
	return fd
}

func goType(v *schemagen.VersionSchemas, t schema.Type) string {
	var s string
	switch t.Kind {
	case schema.KindAny:
		return "interface{}"
	case schema.KindString:
		s = "string"
	case schema.KindInt:
		s = "int64"
	case schema.KindFloat:
		s = "float64"
	case schema.KindBool:
		s = "bool"
	case schema.KindList:
		return "[]" + goType(v, *t.Elem)
	case schema.KindMap:
		return "map[string]" + goType(v, *t.Elem)
	case schema.KindSchema:
		s = GoName(v.Name(t.Ref))
	case schema.KindEnum:
		s = string(t.Ref)
		if e, ok := v.Enum(t.Ref); ok {
			s = e.Name
		}
		s = GoName(s)
	}
	if t.Nullable {
		return "*" + s
	}
	return s
}

var initialisms = map[string]bool{
	"api": true, "http": true, "id": true, "ip": true, "json": true,
	"uid": true, "uri": true, "url": true, "uuid": true,
}

// GoName converts a field, schema or member name into an exported Go identifier
func GoName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var b strings.Builder
	for _, p := range parts {
		if initialisms[strings.ToLower(p)] {
			b.WriteString(strings.ToUpper(p))
			continue
		}
		runes := []rune(p)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	out := b.String()
	if out == "" {
		return "X"
	}
	if unicode.IsDigit([]rune(out)[0]) {
		return "X" + out
	}
	return out
}
