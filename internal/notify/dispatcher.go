package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"camclip/internal/domain"
	"camclip/internal/infra"
)

// Message is a rendered email.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// Mailer delivers rendered messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of delivering them.
type LogMailer struct {
	Logger infra.Logger
}

// Send logs the message envelope.
func (m LogMailer) Send(_ context.Context, msg Message) error {
	m.Logger.Info().
		Str("to", msg.To).
		Str("from", msg.From).
		Str("subject", msg.Subject).
		Int("html_bytes", len(msg.HTML)).
		Msg("email sent")
	return nil
}

// Result reports the outcome of a send. Callers log it; it never fails the
// order.
type Result struct {
	Success bool
	Error   string
}

// Notifier is the notification capability consumed by the workflow.
type Notifier interface {
	SendSuccess(ctx context.Context, orderID string) Result
	SendFailure(ctx context.Context, orderID, errorMessage string) Result
}

// Dispatcher looks up orders, renders templates and hands them to a Mailer.
type Dispatcher struct {
	orders        domain.OrderRepository
	mailer        Mailer
	from          string
	publicBaseURL string
	logger        infra.Logger
}

// Options configures a Dispatcher.
type Options struct {
	Orders        domain.OrderRepository
	Mailer        Mailer
	From          string
	PublicBaseURL string
	Logger        *infra.Logger
}

// NewDispatcher builds a Dispatcher. A nil Mailer logs messages.
func NewDispatcher(opts Options) *Dispatcher {
	logger := infra.NopLogger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	mailer := opts.Mailer
	if mailer == nil {
		mailer = LogMailer{Logger: logger}
	}
	return &Dispatcher{
		orders:        opts.Orders,
		mailer:        mailer,
		from:          opts.From,
		publicBaseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
		logger:        logger,
	}
}

type emailData struct {
	OrderID      string
	VideoURL     string
	ThumbnailURL string
	ErrorMessage string
	StatusURL    string
}

// SendSuccess emails the customer that their video is ready.
func (d *Dispatcher) SendSuccess(ctx context.Context, orderID string) Result {
	order, err := d.lookup(ctx, orderID)
	if err != nil {
		return d.failed(orderID, "success", err)
	}
	data := d.baseData(order)
	data.VideoURL = domain.StringValue(order.ProcessedVideoURL)
	data.ThumbnailURL = domain.StringValue(order.ThumbnailURL)
	return d.deliver(ctx, order, "Your caught-on-camera video is ready", successTemplate, data)
}

// SendFailure emails the customer that processing failed.
func (d *Dispatcher) SendFailure(ctx context.Context, orderID, errorMessage string) Result {
	order, err := d.lookup(ctx, orderID)
	if err != nil {
		return d.failed(orderID, "failure", err)
	}
	data := d.baseData(order)
	data.ErrorMessage = errorMessage
	if data.ErrorMessage == "" {
		data.ErrorMessage = domain.StringValue(order.ErrorMessage)
	}
	return d.deliver(ctx, order, "There was a problem with your video order", failureTemplate, data)
}

func (d *Dispatcher) lookup(ctx context.Context, orderID string) (*domain.Order, error) {
	if d.orders == nil {
		return nil, errors.New("notify: no order repository configured")
	}
	order, err := d.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if strings.TrimSpace(order.Email) == "" {
		return nil, errors.New("order has no customer email")
	}
	return order, nil
}

func (d *Dispatcher) baseData(order *domain.Order) emailData {
	data := emailData{OrderID: order.ID}
	if d.publicBaseURL != "" {
		data.StatusURL = d.publicBaseURL + "/order/status?orderId=" + url.QueryEscape(order.ID)
	}
	return data
}

func (d *Dispatcher) deliver(ctx context.Context, order *domain.Order, subject string, tmpl *template.Template, data emailData) Result {
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return d.failed(order.ID, tmpl.Name(), fmt.Errorf("render: %w", err))
	}
	msg := Message{From: d.from, To: order.Email, Subject: subject, HTML: body.String()}
	if err := d.mailer.Send(ctx, msg); err != nil {
		return d.failed(order.ID, tmpl.Name(), fmt.Errorf("send: %w", err))
	}
	return Result{Success: true}
}

func (d *Dispatcher) failed(orderID, kind string, err error) Result {
	d.logger.Error().Err(err).Str("order_id", orderID).Str("kind", kind).Msg("notification not sent")
	return Result{Error: err.Error()}
}

var _ Notifier = (*Dispatcher)(nil)
