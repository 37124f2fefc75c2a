package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/54b3r/civic-go/internal/config"
	"github.com/54b3r/civic-go/internal/rag"
)

const (
	// webContextDocs is the number of web documents quoted in a response.
	webContextDocs = 3

	// webMinContent is the shortest document quoted.
	webMinContent = 200

	// webExcerpt is the number of characters quoted per document.
	webExcerpt = 1000

	intentGeneric = "generic"
)

// WebSource returns cached website documents. *webcache.Cache satisfies it.
type WebSource interface {
	Fetch(ctx context.Context, force bool) ([]rag.Document, error)
}

// supportedServices lists what the assistant can do.
const supportedServices = `I can assist you with:

**Billing Services:**
- Check water bill balances and payment history
- Process payments through various methods
- View billing information and due dates

**Incident Reporting:**
- Report pipe bursts, leaks, or infrastructure issues
- Log maintenance requests and emergencies

**Licensing Services:**
- Apply for business licences and permits
- Get information about licensing requirements
- Track application status

**General Information:**
- Council contact details and office locations
- Frequently asked questions
- Department information and services`

// staticHelp is the unknown-branch answer when the website is unavailable.
const staticHelp = "I'm sorry, I couldn't determine which service you need help with. " + supportedServices +
	"\n\nPlease rephrase your question or specify which service you need help with. " +
	"For urgent matters, contact the Masvingo City Council directly at +263-39-123-456."

// fallback answers queries no handler claims, using cached website content.
type fallback struct {
	web     WebSource
	intents []config.KeywordSet
	baseURL string
	log     *slog.Logger
}

// respond never fails: any web problem degrades to staticHelp.
func (f *fallback) respond(ctx context.Context, query string) string {
	if f.web == nil {
		return staticHelp
	}
	docs, err := f.web.Fetch(ctx, false)
	if err != nil {
		f.log.Warn("orchestrator: web-enhanced answer unavailable", slog.String("error", err.Error()))
		return staticHelp
	}
	intent := f.intent(query)
	excerpt := webContext(docs, intent)
	if excerpt == "" {
		return staticHelp
	}

	site := f.baseURL
	switch intent {
	case "services":
		return fmt.Sprintf("Based on current information from the Masvingo City Council website, here are some key services:%s\n\n"+
			"For specific services, please visit %s or contact the council directly.", excerpt, site)
	case "contact":
		return fmt.Sprintf("Here is the contact information from the Masvingo City Council website:%s\n\n"+
			"Main Office: +263 (392) 262 431/4\nEmail: info@masvingocity.org.zw\nWebsite: %s", excerpt, site)
	case "news":
		return fmt.Sprintf("Latest updates from the Masvingo City Council website:%s\n\n"+
			"For the most current information, please visit %s", excerpt, site)
	default:
		return fmt.Sprintf("I've searched the Masvingo City Council website for information related to your query.%s\n\n"+
			"For more detailed assistance, please contact the council directly or visit their website.\n\n%s", excerpt, supportedServices)
	}
}

// intent returns the first intent with a keyword in query, or generic.
func (f *fallback) intent(query string) string {
	q := strings.ToLower(query)
	for _, in := range f.intents {
		for _, kw := range in.Keywords {
			if strings.Contains(q, kw) {
				return in.Name
			}
		}
	}
	return intentGeneric
}

// webContext quotes up to webContextDocs documents longer than
// webMinContent, preferring pages whose category matches intent.
func webContext(docs []rag.Document, intent string) string {
	ordered := make([]rag.Document, len(docs))
	copy(ordered, docs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Metadata.Extra["category"] == intent && ordered[j].Metadata.Extra["category"] != intent
	})

	var sb strings.Builder
	n := 0
	for _, d := range ordered {
		if n == webContextDocs {
			break
		}
		content := []rune(d.Content)
		if len(content) <= webMinContent {
			continue
		}
		if len(content) > webExcerpt {
			content = content[:webExcerpt]
		}
		title := d.Metadata.Title
		if title == "" {
			title = "Web Content"
		}
		fmt.Fprintf(&sb, "\n\nFrom %s:\n%s...", title, string(content))
		n++
	}
	return sb.String()
}
