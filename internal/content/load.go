package content

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/multierr"
	yaml "gopkg.in/yaml.v3"
)

// DefaultLocale is assumed for entries and sites that do not name one.
const DefaultLocale = "en"

type fixture struct {
	Site        siteDoc         `yaml:"site"`
	Collections []collectionDoc `yaml:"collections"`
	Entries     []entryDoc      `yaml:"entries"`
	Navigation  []structureDoc  `yaml:"navigation"`
}

type siteDoc struct {
	URL    string `yaml:"url"`
	Locale string `yaml:"locale"`
}

type collectionDoc struct {
	Handle string `yaml:"handle"`
	Title  string `yaml:"title"`
	Mount  string `yaml:"mount"`
}

type entryDoc struct {
	ID         string `yaml:"id"`
	Collection string `yaml:"collection"`
	Locale     string `yaml:"locale"`
	Origin     string `yaml:"origin"`
	Parent     string `yaml:"parent"`
	Title      string `yaml:"title"`
	Slug       string `yaml:"slug"`
	URL        string `yaml:"url"`
	Permalink  string `yaml:"permalink"`
	Blueprint  string `yaml:"blueprint"`
}

type structureDoc struct {
	Handle string                  `yaml:"handle"`
	Title  string                  `yaml:"title"`
	Trees  map[string][]navNodeDoc `yaml:"trees"`
}

type navNodeDoc struct {
	ID       string       `yaml:"id"`
	Entry    string       `yaml:"entry"`
	Title    string       `yaml:"title"`
	URL      string       `yaml:"url"`
	Children []navNodeDoc `yaml:"children"`
}

// LoadFile reads a YAML content fixture from path.
func LoadFile(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content %s: %w", path, err)
	}
	return Load(bytes.NewReader(data))
}

// Load decodes a YAML content fixture and links it into a MemoryStore.
// Unknown keys are rejected. Every validation problem is reported at once;
// use multierr.Errors to enumerate them.
func Load(r io.Reader) (*MemoryStore, error) {
	var doc fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	l := &linker{
		doc:         &doc,
		store:       NewMemoryStore(),
		entries:     make(map[string]*Entry),
		collections: make(map[string]*Collection),
		urlState:    make(map[*Entry]int),
	}
	if l.doc.Site.Locale == "" {
		l.doc.Site.Locale = DefaultLocale
	}
	l.link()
	if l.err != nil {
		return nil, l.err
	}
	return l.store, nil
}

type linker struct {
	doc         *fixture
	store       *MemoryStore
	entries     map[string]*Entry
	collections map[string]*Collection
	// urlState tracks url derivation: 1 in progress, 2 done.
	urlState map[*Entry]int
	err      error
}

func (l *linker) fail(format string, args ...any) {
	l.err = multierr.Append(l.err, fmt.Errorf(format, args...))
}

func (l *linker) link() {
	l.linkCollections()
	l.linkEntries()
	l.linkMounts()
	l.checkCycles()
	l.deriveRoutes()
	if l.err != nil {
		return
	}
	for _, d := range l.doc.Entries {
		if err := l.store.AddEntry(l.entries[d.ID]); err != nil {
			l.fail("%v", err)
		}
	}
	for _, c := range l.collections {
		l.store.AddCollection(c)
	}
	l.linkNavigation()
}

func (l *linker) linkCollections() {
	for i, d := range l.doc.Collections {
		if d.Handle == "" {
			l.fail("collections[%d]: handle is required", i)
			continue
		}
		if _, dup := l.collections[d.Handle]; dup {
			l.fail("collection %q: duplicate handle", d.Handle)
			continue
		}
		l.collections[d.Handle] = &Collection{Handle: d.Handle, Title: d.Title}
	}
}

func (l *linker) linkEntries() {
	for i, d := range l.doc.Entries {
		if d.ID == "" {
			l.fail("entries[%d]: id is required", i)
			continue
		}
		if _, dup := l.entries[d.ID]; dup {
			l.fail("entry %q: duplicate id", d.ID)
			continue
		}
		if d.Title == "" {
			l.fail("entry %q: title is required", d.ID)
		}
		locale := d.Locale
		if locale == "" {
			locale = l.doc.Site.Locale
		}
		e := &Entry{
			ID:        d.ID,
			Title:     d.Title,
			Slug:      d.Slug,
			URL:       d.URL,
			Permalink: d.Permalink,
			Locale:    locale,
			Blueprint: d.Blueprint,
		}
		if e.Slug == "" {
			e.Slug = slug.Make(d.Title)
		}
		if d.Collection == "" {
			l.fail("entry %q: collection is required", d.ID)
		} else if c, ok := l.collections[d.Collection]; ok {
			e.Collection = c
		} else {
			l.fail("entry %q: unknown collection %q", d.ID, d.Collection)
		}
		l.entries[d.ID] = e
	}

	for _, d := range l.doc.Entries {
		e := l.entries[d.ID]
		if e == nil {
			continue
		}
		if d.Parent != "" {
			p, ok := l.entries[d.Parent]
			if !ok {
				l.fail("entry %q: unknown parent %q", d.ID, d.Parent)
			}
			e.Parent = p
		}
		l.linkOrigin(e, d.Origin)
	}
}

func (l *linker) linkOrigin(e *Entry, originID string) {
	if originID == "" {
		if e.Localizations == nil {
			e.Localizations = map[string]*Entry{e.Locale: e}
		}
		return
	}
	o, ok := l.entries[originID]
	if !ok {
		l.fail("entry %q: unknown origin %q", e.ID, originID)
		return
	}
	if o.Origin != nil {
		l.fail("entry %q: origin %q is itself a localization", e.ID, originID)
		return
	}
	if o.Localizations == nil {
		o.Localizations = map[string]*Entry{o.Locale: o}
	}
	if prev, taken := o.Localizations[e.Locale]; taken && prev != e {
		l.fail("entry %q: origin %q already has a %q variant (%q)", e.ID, originID, e.Locale, prev.ID)
		return
	}
	o.Localizations[e.Locale] = e
	e.Origin = o
	e.Localizations = o.Localizations
}

func (l *linker) linkMounts() {
	for _, d := range l.doc.Collections {
		c := l.collections[d.Handle]
		if c == nil || d.Mount == "" {
			continue
		}
		m, ok := l.entries[d.Mount]
		if !ok {
			l.fail("collection %q: unknown mount entry %q", d.Handle, d.Mount)
			continue
		}
		c.Mount = m
	}
}

// checkCycles rejects parent chains that loop back to their start; breadcrumb
// resolution relies on every chain terminating.
func (l *linker) checkCycles() {
	for _, d := range l.doc.Entries {
		e := l.entries[d.ID]
		if e == nil {
			continue
		}
		seen := map[*Entry]bool{}
		for p := e; p != nil && !seen[p]; p = p.Parent {
			seen[p] = true
			if p.Parent == e {
				l.fail("entry %q: parent chain loops back through %q", e.ID, p.ID)
				break
			}
		}
	}
}

func (l *linker) deriveRoutes() {
	base := strings.TrimRight(l.doc.Site.URL, "/")
	for _, d := range l.doc.Entries {
		e := l.entries[d.ID]
		if e == nil {
			continue
		}
		l.deriveURL(e)
		if e.Permalink == "" && e.URL != "" && base != "" {
			e.Permalink = base + e.URL
		}
	}
}

// deriveURL fills a missing url from the parent's url, or from the
// collection mount for top-level entries, followed by the slug.
func (l *linker) deriveURL(e *Entry) string {
	switch l.urlState[e] {
	case 1:
		return ""
	case 2:
		return e.URL
	}
	l.urlState[e] = 1
	if e.URL == "" {
		prefix := ""
		if e.Parent != nil {
			prefix = l.deriveURL(e.Parent)
		} else if m := e.Collection.MountIn(e.Locale); m != nil && m != e {
			prefix = l.deriveURL(m)
		}
		e.URL = strings.TrimRight(prefix, "/") + "/" + e.Slug
	}
	l.urlState[e] = 2
	return e.URL
}

func (l *linker) linkNavigation() {
	for i, d := range l.doc.Navigation {
		if d.Handle == "" {
			l.fail("navigation[%d]: handle is required", i)
			continue
		}
		st := &Structure{Handle: d.Handle, Title: d.Title, Trees: make(map[string][]NavNode, len(d.Trees))}
		for locale, nodes := range d.Trees {
			st.Trees[locale] = l.buildNodes(d.Handle, locale, nodes)
		}
		l.store.AddStructure(st)
	}
}

func (l *linker) buildNodes(handle, locale string, docs []navNodeDoc) []NavNode {
	if len(docs) == 0 {
		return nil
	}
	out := make([]NavNode, 0, len(docs))
	for _, d := range docs {
		n := NavNode{ID: d.ID, Title: d.Title, URL: d.URL}
		switch {
		case d.Entry != "":
			n.Kind = NodeEntry
			n.EntryID = d.Entry
		case d.Title != "":
			n.Kind = NodeLink
		default:
			l.fail("navigation %q (%s): node %q needs an entry or a title", handle, locale, d.ID)
			continue
		}
		n.Children = l.buildNodes(handle, locale, d.Children)
		out = append(out, n)
	}
	return out
}
