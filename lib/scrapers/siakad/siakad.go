package siakad

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"warkrs/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/siakad")

// Session holds the two opaque values copied out of an authenticated
// browser session. The client passes them through unmodified, it never
// acquires or refreshes them itself.
type Session struct {
	CiSession   string `json:"ci_session"`
	CfClearance string `json:"cf_clearance"`
}

// Endpoints are the two portal pages the client talks to. Exact URLs
// are deployment-specific and owned by configuration.
type Endpoints struct {
	ChooseCourse     string `json:"choose_course"`
	SaveRegistration string `json:"save_registration"`
}

type ClientOptions struct {
	Endpoints Endpoints
	Session   Session
	// zero means the 20s default
	Timeout time.Duration
}

// Client issues authenticated calls against the portal. It is stateless
// with respect to courses and outcomes, it only knows how to carry the
// session and move HTML around.
type Client struct {
	Http      *resty.Client
	endpoints Endpoints
}

var instrumentOutput restyutil.InstrumentOutput

// SetInstrumentOutput enables persisting raw request/response exchanges,
// affects clients created afterwards.
func SetInstrumentOutput(out restyutil.InstrumentOutput) {
	instrumentOutput = out
}

func NewClient(opts ClientOptions) (*Client, error) {
	chooseUrl, err := url.Parse(opts.Endpoints.ChooseCourse)
	if err != nil {
		return nil, err
	}
	if _, err := url.Parse(opts.Endpoints.SaveRegistration); err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second * 20
	}

	client := resty.New()
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(chooseUrl.Hostname()))
	client.SetTimeout(timeout)

	domain := chooseUrl.Hostname()
	client.SetCookies([]*http.Cookie{
		{Name: "ci_session", Value: opts.Session.CiSession, Domain: domain},
		{Name: "cf_clearance", Value: opts.Session.CfClearance, Domain: domain},
	})

	restyutil.InstrumentClient(client, tracer, instrumentOutput)

	return &Client{
		Http:      client,
		endpoints: opts.Endpoints,
	}, nil
}

// Response is a raw portal reply, kept as text so classification stays a
// pure function over it.
type Response struct {
	Status int
	Body   string
}

// ChoosePage fetches the course selection page.
func (c *Client) ChoosePage(ctx context.Context) (Response, error) {
	ctx, span := tracer.Start(ctx, "client:ChoosePage")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		Get(c.endpoints.ChooseCourse)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch choose course page")
		return Response{}, err
	}
	return Response{Status: res.StatusCode(), Body: res.String()}, nil
}

// Directory fetches and parses the course selection page in one go.
func (c *Client) Directory(ctx context.Context) (Directory, error) {
	res, err := c.ChoosePage(ctx)
	if err != nil {
		return Directory{}, err
	}
	return ParseDirectory(res.Body), nil
}

// Register submits one registration request for a class. The portal
// answers with HTML regardless of outcome, interpreting it is the
// classifier's job, not the carrier's.
func (c *Client) Register(ctx context.Context, classId string) (Response, error) {
	ctx, span := tracer.Start(ctx, "client:Register")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"idkelas": classId,
		}).
		Post(c.endpoints.SaveRegistration)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit registration")
		return Response{}, err
	}
	return Response{Status: res.StatusCode(), Body: res.String()}, nil
}
