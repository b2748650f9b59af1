package jobs

import (
	"context"
	"fmt"
	"time"

	"clubops-backend/lib/htmlutil"
	"clubops-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const boardBaseURL = "https://dobrysef.cz"

// BoardClient scrapes a job board's public JSON listing. The board
// sits behind Cloudflare, hence the bypass transport.
type BoardClient struct {
	http *resty.Client
}

type BoardClientOptions struct {
	// BaseURL overrides the board root, used by tests.
	BaseURL string
}

func NewBoardClient(opts BoardClientOptions) *BoardClient {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = boardBaseURL
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(time.Second * 60)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	telemetry.InstrumentResty(client, "services/jobs")

	return &BoardClient{http: client}
}

type boardPost struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"descriptionHTML"`
	PublishedAt string `json:"publishedAt"`
	Remote      bool   `json:"remote"`
	Cities      []struct {
		Name string `json:"name"`
	} `json:"cities"`
	Employment struct {
		FullTime bool `json:"fulltime"`
		PartTime bool `json:"parttime"`
		Contract bool `json:"contract"`
	} `json:"employment"`
	Company struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
	} `json:"company"`
}

func (p boardPost) posting(baseURL string) Posting {
	posting := Posting{
		ID:              "dobrysef:" + p.Slug,
		Title:           p.Title,
		Link:            fmt.Sprintf("%s/prace/%s/", baseURL, p.Slug),
		CompanyName:     p.Company.Name,
		CompanyLink:     fmt.Sprintf("%s/firmy/%s/", baseURL, p.Company.Slug),
		DescriptionHTML: p.Description,
		Remote:          p.Remote,
		Source:          "dobrysef",
	}
	if text, err := htmlutil.TextFromHTML(p.Description); err == nil {
		posting.DescriptionText = text
	}
	if postedAt, err := time.Parse("2006-01-02", p.PublishedAt); err == nil {
		posting.PostedAt = postedAt
	}
	for _, city := range p.Cities {
		posting.LocationsRaw = append(posting.LocationsRaw, city.Name)
	}
	if p.Employment.FullTime {
		posting.EmploymentTypes = append(posting.EmploymentTypes, "full time")
	}
	if p.Employment.PartTime {
		posting.EmploymentTypes = append(posting.EmploymentTypes, "part time")
	}
	if p.Employment.Contract {
		posting.EmploymentTypes = append(posting.EmploymentTypes, "contract")
	}
	return posting
}

// Scrape downloads the listing and converts it to pipeline items.
func (c *BoardClient) Scrape(ctx context.Context) ([]Posting, error) {
	ctx, span := tracer.Start(ctx, "Scrape")
	defer span.End()

	var posts []boardPost
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("format", "json").
		SetResult(&posts).
		Get("/api/jobposts/")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch job board listing")
		return nil, err
	}
	if res.IsError() {
		err := fmt.Errorf("job board: %s: %s", res.Status(), res.String())
		span.RecordError(err)
		span.SetStatus(codes.Error, "job board listing error response")
		return nil, err
	}

	postings := make([]Posting, len(posts))
	for i, post := range posts {
		postings[i] = post.posting(c.http.BaseURL)
	}
	span.SetAttributes(attribute.Int("postings", len(postings)))
	return postings, nil
}
