// Package netapp is a minimal read-only client for the ONTAP ZAPI endpoint of
// a storage controller. It exposes exactly the queries the balancer consumes:
// system version, aggregate usage, volume usage and the lun list.
package netapp

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	zapiPath    = "/servlets/netapp.servlets.admin.XMLrequest_filer"
	zapiVersion = "1.31"
	zapiXmlns   = "http://www.netapp.com/filer/admin"

	// page size for the *-get-iter calls
	maxRecords = 500
)

// AggrUsage is one aggregate as reported by aggr-get-iter.
type AggrUsage struct {
	Name          string
	RootAggregate bool
	SizeTotal     int64
	PercentUsed   int
}

// VolumeUsage is one flexvol as reported by volume-get-iter.
type VolumeUsage struct {
	Name      string
	Aggregate string
	SizeTotal int64
	SizeUsed  int64
}

// Lun is one lun as reported by lun-get-iter.
type Lun struct {
	Path     string
	Volume   string
	Comment  string
	SizeUsed int64
}

type Client struct {
	host       string
	username   string
	password   string
	httpClient *http.Client
}

// NewClient returns a client for one controller. The controllers present
// self-signed certificates, so verification is off.
func NewClient(host, username, password string) *Client {
	return &Client{
		host:     host,
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
}

// Host returns the controller hostname this client talks to.
func (c *Client) Host() string {
	return c.host
}

type resultStatus struct {
	Status string `xml:"status,attr"`
	Reason string `xml:"reason,attr"`
	Errno  string `xml:"errno,attr"`
}

func (r resultStatus) err() error {
	if r.Status != "passed" {
		return fmt.Errorf("zapi call failed: %s (errno %s)", r.Reason, r.Errno)
	}
	return nil
}

// call marshals the payload into a ZAPI envelope, posts it and decodes the
// response into out, which must be a pointer to a per-call envelope struct.
func (c *Client) call(ctx context.Context, payload any, out any) error {
	body, err := xml.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal zapi request: %w", err)
	}
	envelope := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?><netapp version=%q xmlns=%q>%s</netapp>`,
		zapiVersion, zapiXmlns, body)

	url := fmt.Sprintf("https://%s%s", c.host, zapiPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(envelope))
	if err != nil {
		return fmt.Errorf("failed to build zapi request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "text/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("zapi request to %s failed: %w", c.host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("zapi request to %s returned status %d", c.host, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read zapi response: %w", err)
	}
	if err := xml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode zapi response: %w", err)
	}
	return nil
}

// SystemVersion returns the controller's software version string.
func (c *Client) SystemVersion(ctx context.Context) (string, error) {
	payload := struct {
		XMLName xml.Name `xml:"system-get-version"`
	}{}
	var envelope struct {
		XMLName xml.Name `xml:"netapp"`
		Results struct {
			resultStatus
			Version string `xml:"version"`
		} `xml:"results"`
	}
	if err := c.call(ctx, payload, &envelope); err != nil {
		return "", err
	}
	if err := envelope.Results.err(); err != nil {
		return "", err
	}
	return envelope.Results.Version, nil
}

type getIterRequest struct {
	XMLName    xml.Name
	MaxRecords int    `xml:"max-records"`
	Tag        string `xml:"tag,omitempty"`
}

// AggregateUsage lists all aggregates with their capacity and usage.
func (c *Client) AggregateUsage(ctx context.Context) ([]AggrUsage, error) {
	var aggrs []AggrUsage
	tag := ""
	for {
		payload := getIterRequest{
			XMLName:    xml.Name{Local: "aggr-get-iter"},
			MaxRecords: maxRecords,
			Tag:        tag,
		}
		var envelope struct {
			XMLName xml.Name `xml:"netapp"`
			Results struct {
				resultStatus
				NextTag        string `xml:"next-tag"`
				AttributesList struct {
					Aggrs []struct {
						Name string `xml:"aggregate-name"`
						Raid struct {
							IsRootAggregate bool `xml:"is-root-aggregate"`
						} `xml:"aggr-raid-attributes"`
						Space struct {
							SizeTotal   int64 `xml:"size-total"`
							PercentUsed int   `xml:"percent-used-capacity"`
						} `xml:"aggr-space-attributes"`
					} `xml:"aggr-attributes"`
				} `xml:"attributes-list"`
			} `xml:"results"`
		}
		if err := c.call(ctx, payload, &envelope); err != nil {
			return nil, err
		}
		if err := envelope.Results.err(); err != nil {
			return nil, err
		}
		for _, aggr := range envelope.Results.AttributesList.Aggrs {
			aggrs = append(aggrs, AggrUsage{
				Name:          aggr.Name,
				RootAggregate: aggr.Raid.IsRootAggregate,
				SizeTotal:     aggr.Space.SizeTotal,
				PercentUsed:   aggr.Space.PercentUsed,
			})
		}
		if envelope.Results.NextTag == "" {
			return aggrs, nil
		}
		tag = envelope.Results.NextTag
	}
}

// VolumeUsage lists all flexvols with their containing aggregate and sizes.
func (c *Client) VolumeUsage(ctx context.Context) ([]VolumeUsage, error) {
	var vols []VolumeUsage
	tag := ""
	for {
		payload := getIterRequest{
			XMLName:    xml.Name{Local: "volume-get-iter"},
			MaxRecords: maxRecords,
			Tag:        tag,
		}
		var envelope struct {
			XMLName xml.Name `xml:"netapp"`
			Results struct {
				resultStatus
				NextTag        string `xml:"next-tag"`
				AttributesList struct {
					Volumes []struct {
						ID struct {
							Name      string `xml:"name"`
							Aggregate string `xml:"containing-aggregate-name"`
						} `xml:"volume-id-attributes"`
						Space struct {
							SizeTotal int64 `xml:"size-total"`
							SizeUsed  int64 `xml:"size-used"`
						} `xml:"volume-space-attributes"`
					} `xml:"volume-attributes"`
				} `xml:"attributes-list"`
			} `xml:"results"`
		}
		if err := c.call(ctx, payload, &envelope); err != nil {
			return nil, err
		}
		if err := envelope.Results.err(); err != nil {
			return nil, err
		}
		for _, vol := range envelope.Results.AttributesList.Volumes {
			vols = append(vols, VolumeUsage{
				Name:      vol.ID.Name,
				Aggregate: vol.ID.Aggregate,
				SizeTotal: vol.Space.SizeTotal,
				SizeUsed:  vol.Space.SizeUsed,
			})
		}
		if envelope.Results.NextTag == "" {
			return vols, nil
		}
		tag = envelope.Results.NextTag
	}
}

// Luns lists all luns with their path, containing volume and used size.
func (c *Client) Luns(ctx context.Context) ([]Lun, error) {
	var luns []Lun
	tag := ""
	for {
		payload := getIterRequest{
			XMLName:    xml.Name{Local: "lun-get-iter"},
			MaxRecords: maxRecords,
			Tag:        tag,
		}
		var envelope struct {
			XMLName xml.Name `xml:"netapp"`
			Results struct {
				resultStatus
				NextTag        string `xml:"next-tag"`
				AttributesList struct {
					Luns []struct {
						Path     string `xml:"path"`
						Volume   string `xml:"volume"`
						Comment  string `xml:"comment"`
						SizeUsed int64  `xml:"size-used"`
					} `xml:"lun-info"`
				} `xml:"attributes-list"`
			} `xml:"results"`
		}
		if err := c.call(ctx, payload, &envelope); err != nil {
			return nil, err
		}
		if err := envelope.Results.err(); err != nil {
			return nil, err
		}
		for _, lun := range envelope.Results.AttributesList.Luns {
			luns = append(luns, Lun{
				Path:     lun.Path,
				Volume:   lun.Volume,
				Comment:  lun.Comment,
				SizeUsed: lun.SizeUsed,
			})
		}
		if envelope.Results.NextTag == "" {
			return luns, nil
		}
		tag = envelope.Results.NextTag
	}
}
