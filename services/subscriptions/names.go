package subscriptions

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"clubops-backend/lib/telemetry"
	"clubops-backend/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const feminineNamesURL = "https://cs.wikipedia.org/wiki/Seznam_nej%C4%8Dast%C4%9Bj%C5%A1%C3%ADch_%C5%BEensk%C3%BDch_jmen_v_%C4%8Cesk%C3%A9_republice"

// Names the wiki list misses: nicknames, foreign spellings and names
// members actually signed up with.
var feminineNameExtras = []string{
	"Amal",
	"Dana",
	"Ila",
	"Mia",
	"Nikol",
	"Péťa",
	"Sarah",
	"Shiva",
	"Týna",
	"Verča",
}

// NameRegister answers whether a given name reads as feminine, so the
// messages addressed to members can be grammatically correct in a
// language where that matters.
type NameRegister struct {
	names map[string]bool
}

func foldName(name string) string {
	return textutil.RemoveAccents(strings.ToLower(strings.TrimSpace(name)))
}

func NewNameRegister(names []string) NameRegister {
	register := NameRegister{names: make(map[string]bool, len(names))}
	for _, name := range names {
		register.names[foldName(name)] = true
	}
	return register
}

// IsFeminine checks the first word of the display name against the
// register, accent-insensitively.
func (r NameRegister) IsFeminine(displayName string) bool {
	first, _, _ := strings.Cut(strings.TrimSpace(displayName), " ")
	return r.names[foldName(first)]
}

func (r NameRegister) Names() []string {
	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}
	return names
}

// SaveNames writes the register to a plain text file, one name per
// line, so other syncs can load it without scraping again.
func (r NameRegister) SaveNames(path string) error {
	names := r.Names()
	sort.Strings(names)
	return os.WriteFile(path, []byte(strings.Join(names, "\n")+"\n"), 0o644)
}

// LoadNameRegister reads a register previously written by SaveNames.
func LoadNameRegister(path string) (NameRegister, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return NameRegister{}, err
	}
	var names []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	return NewNameRegister(names), nil
}

// ScrapeFeminineNames builds the register from the public list of the
// most common feminine first names plus the extras above.
func ScrapeFeminineNames(ctx context.Context) (NameRegister, error) {
	ctx, span := tracer.Start(ctx, "ScrapeFeminineNames")
	defer span.End()

	client := resty.New()
	client.SetTimeout(time.Second * 30)
	telemetry.InstrumentResty(client, "services/subscriptions")

	res, err := client.R().SetContext(ctx).SetDoNotParseResponse(true).Get(feminineNamesURL)
	if err != nil {
		return NameRegister{}, err
	}
	defer res.RawBody().Close()
	if res.IsError() {
		return NameRegister{}, fmt.Errorf("unable to fetch feminine names: %s", res.Status())
	}

	doc, err := goquery.NewDocumentFromReader(res.RawBody())
	if err != nil {
		return NameRegister{}, err
	}

	names := append([]string{}, feminineNameExtras...)
	doc.Find(".wikitable a[href]").Each(func(i int, sel *goquery.Selection) {
		name := strings.TrimSpace(sel.Text())
		if name != "" {
			names = append(names, name)
		}
	})
	if len(names) == len(feminineNameExtras) {
		return NameRegister{}, fmt.Errorf("feminine names page yielded no names, markup changed?")
	}
	return NewNameRegister(names), nil
}
