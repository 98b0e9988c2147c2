package nav

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/brokerage-service/internal/config"
	"github.com/Dan9191/brokerage-service/internal/models"
)

// Client fetches the latest NAV of a fund from the NAV feed.
//
// The feed answers GET <url>?scheme=<fund id> with
//
//	<NAVData>
//	  <Scheme>
//	    <Code>120503</Code>
//	    <NAV>45.1234</NAV>
//	    <Date>2026-01-16</Date>
//	  </Scheme>
//	</NAVData>
type Client struct {
	url    string
	client *http.Client
	log    *logrus.Logger
}

// NewClient initializes a new NAV client
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	return &Client{
		url: cfg.NAVURL,
		client: &http.Client{
			Timeout: cfg.PriceTimeout,
		},
		log: log,
	}
}

// buildRequest creates the NAV lookup request for fundID
func (c *Client) buildRequest(ctx context.Context, fundID string) (*http.Request, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("invalid NAV url: %v", err)
	}
	q := u.Query()
	q.Set("scheme", fundID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Accept", "application/xml")
	return req, nil
}

// sendRequest sends the request to the NAV feed
func (c *Client) sendRequest(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %v", err)
	}

	c.log.Debugf("NAV XML response: %s", string(body))
	return body, nil
}

// parseXMLResponse extracts the NAV of fundID from the feed document
func parseXMLResponse(rawBody []byte, fundID string) (models.Price, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawBody); err != nil {
		return models.Price{}, fmt.Errorf("failed to parse XML: %v", err)
	}

	var scheme *etree.Element
	for _, el := range doc.FindElements("//Scheme") {
		if code := el.FindElement("./Code"); code != nil && strings.TrimSpace(code.Text()) == fundID {
			scheme = el
			break
		}
	}
	if scheme == nil {
		return models.Price{}, fmt.Errorf("no NAV data found for scheme %s", fundID)
	}

	navElement := scheme.FindElement("./NAV")
	if navElement == nil {
		return models.Price{}, fmt.Errorf("NAV element not found for scheme %s", fundID)
	}
	nav, err := decimal.NewFromString(strings.TrimSpace(navElement.Text()))
	if err != nil {
		return models.Price{}, fmt.Errorf("failed to parse NAV: %v", err)
	}

	price := models.Price{FundID: fundID, NAV: nav}
	if dateElement := scheme.FindElement("./Date"); dateElement != nil {
		if asOf, err := time.Parse(time.DateOnly, strings.TrimSpace(dateElement.Text())); err == nil {
			price.AsOf = asOf
		}
	}
	return price, nil
}

// LatestPrice retrieves the current NAV of fundID
func (c *Client) LatestPrice(ctx context.Context, fundID string) (models.Price, error) {
	req, err := c.buildRequest(ctx, fundID)
	if err != nil {
		return models.Price{}, err
	}
	body, err := c.sendRequest(req)
	if err != nil {
		return models.Price{}, err
	}

	price, err := parseXMLResponse(body, fundID)
	if err != nil {
		return models.Price{}, err
	}

	c.log.WithFields(logrus.Fields{
		"fund_id": fundID,
		"nav":     price.NAV.String(),
		"as_of":   price.AsOf.Format(time.DateOnly),
	}).Debug("Retrieved NAV")
	return price, nil
}
