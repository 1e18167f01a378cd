package harvest

import (
	"context"
	"strings"

	"github.com/use-agent/bibharvest/engine"
)

const entryURL = "https://dblp.org/"

// fakeNode is one scripted element.
type fakeNode struct {
	text string
	href string
}

// fakeDoc is one scripted page state: its markup and what each selector
// matches.
type fakeDoc struct {
	html string
	sel  map[string][]*fakeNode
}

// fakeSite implements engine.Page over a routing function. Clicking a node
// with an href loads that route, just like following a link.
type fakeSite struct {
	route   func(url string, visit int) *fakeDoc
	visits  map[string]int
	current string
	doc     *fakeDoc
	navErr  error
}

func newFakeSite(route func(url string, visit int) *fakeDoc) *fakeSite {
	return &fakeSite{route: route, visits: make(map[string]int)}
}

func (s *fakeSite) load(url string) {
	s.visits[url]++
	s.current = url
	s.doc = s.route(url, s.visits[url])
	if s.doc == nil {
		s.doc = &fakeDoc{html: "<html><body><p>not found</p></body></html>"}
	}
}

func (s *fakeSite) Navigate(_ context.Context, url string) error {
	if s.navErr != nil {
		return s.navErr
	}
	s.load(url)
	return nil
}

func (s *fakeSite) Has(_ context.Context, selector string) (bool, error) {
	if s.doc == nil {
		return false, nil
	}
	return len(s.doc.sel[selector]) > 0, nil
}

func (s *fakeSite) Elements(_ context.Context, selector string) ([]engine.Element, error) {
	if s.doc == nil {
		return nil, nil
	}
	var out []engine.Element
	for _, n := range s.doc.sel[selector] {
		out = append(out, &fakeElement{site: s, node: n})
	}
	return out, nil
}

func (s *fakeSite) HTML(context.Context) (string, error) {
	if s.doc == nil {
		return "", nil
	}
	return s.doc.html, nil
}

func (s *fakeSite) URL() string { return s.current }

type fakeElement struct {
	site *fakeSite
	node *fakeNode
}

func (e *fakeElement) Text(context.Context) (string, error) { return e.node.text, nil }

func (e *fakeElement) Attribute(_ context.Context, name string) (string, bool, error) {
	if name != "href" || e.node.href == "" {
		return "", false, nil
	}
	return e.node.href, true, nil
}

func (e *fakeElement) Elements(context.Context, string) ([]engine.Element, error) { return nil, nil }

func (e *fakeElement) Click(context.Context) error {
	if e.node.href != "" {
		e.site.load(e.node.href)
	}
	return nil
}

// dblpFake scripts the four pages of one walk.
type dblpFake struct {
	// authors lists the names on the letter page for its nth visit. An empty
	// list renders the page without its landmark.
	authors func(visit int) []string

	// citations lists the blocks on an author's export page.
	citations func(author string) []string

	// noPersonLetters leaves only non-person links in the letter index.
	noPersonLetters bool

	// noLandmark drops the entry page landmark.
	noLandmark bool
}

const homeHTML = `<html><head><title>dblp: computer science bibliography</title></head>
<body><header><nav><a href="/search">search</a></nav></header>
<div id="home-marker"><ul id="browsable"><li><a href="/db/conf">conferences</a></li></ul></div></body></html>`

func (f *dblpFake) site() *fakeSite {
	return newFakeSite(func(url string, visit int) *fakeDoc {
		switch {
		case url == entryURL:
			letters := []*fakeNode{{text: "conferences", href: "/db/conf"}}
			if !f.noPersonLetters {
				letters = append(letters, &fakeNode{text: "A", href: "/pers?pos=1"})
			}
			doc := &fakeDoc{html: homeHTML, sel: map[string][]*fakeNode{
				"ul#browsable":   {{}},
				"ul#browsable a": letters,
			}}
			if !f.noLandmark {
				doc.sel["header nav"] = []*fakeNode{{}}
			}
			return doc

		case url == "/pers?pos=1":
			names := f.authors(visit)
			doc := &fakeDoc{
				html: `<html><body><div id="browse-person-output"><ul><li><a>person</a></li></ul></div></body></html>`,
				sel:  map[string][]*fakeNode{},
			}
			if len(names) == 0 {
				doc.html = `<html><body><div class="error"><p>temporarily unavailable</p></div></body></html>`
				return doc
			}
			doc.sel["#browse-person-output"] = []*fakeNode{{}}
			for _, n := range names {
				doc.sel["#browse-person-output a"] = append(doc.sel["#browse-person-output a"],
					&fakeNode{text: " " + n + " ", href: "/pid/" + n})
			}
			return doc

		case strings.HasSuffix(url, ".bib"):
			author := strings.TrimSuffix(strings.TrimPrefix(url, "/pid/"), ".bib")
			doc := &fakeDoc{
				html: `<html><body><div class="section"><pre class="verbatim">@article{}</pre></div></body></html>`,
				sel:  map[string][]*fakeNode{},
			}
			for _, c := range f.citations(author) {
				doc.sel[".verbatim"] = append(doc.sel[".verbatim"], &fakeNode{text: c})
			}
			return doc

		case strings.HasPrefix(url, "/pid/"):
			return &fakeDoc{
				html: `<html><body><nav class="head"><ul><li class="export"><a>export</a></li></ul></nav></body></html>`,
				sel: map[string][]*fakeNode{
					".export": {{}},
					".export a": {
						{text: "BibTeX", href: url + ".bib"},
						{text: "RIS", href: url + ".ris"},
					},
				},
			}
		}
		return nil
	})
}
