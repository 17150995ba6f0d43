// refdata/source.go
package refdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/masim/analysis/config"
	"github.com/masim/analysis/models"
	log "github.com/sirupsen/logrus"
)

// Source reads the GIS reference files from local paths or over HTTP. When
// an index page is configured, file locations are looked up among its links
// by base name.
type Source struct {
	cfg    config.ReferenceConfig
	client *http.Client
	index  map[string]string
}

// NewSource returns a Source; a nil client gets a 30 second timeout.
func NewSource(cfg config.ReferenceConfig, client *http.Client) *Source {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Source{cfg: cfg, client: client}
}

// Districts loads the district mapping.
func (s *Source) Districts(ctx context.Context) (*DistrictMap, error) {
	rc, err := s.open(ctx, s.cfg.DistrictsMapping)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return ParseDistricts(rc)
}

// MutationPoints loads the reference points for a mutation key. The
// combined key draws on the configured stand-in set.
func (s *Source) MutationPoints(ctx context.Context, key string) ([]models.MutationPoint, error) {
	if key == models.Either {
		key = s.cfg.EitherKey
	}
	rc, err := s.open(ctx, MutationsLocation(s.cfg.MutationsTemplate, key))
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return ParseMutationPoints(rc)
}

// MutationsLocation fills the template with the lower-cased key, giving
// e.g. uga_469y_mutations.csv.
func MutationsLocation(template, key string) string {
	return fmt.Sprintf(template, strings.ToLower(key))
}

func (s *Source) open(ctx context.Context, location string) (io.ReadCloser, error) {
	if s.cfg.IndexURL != "" {
		if s.index == nil {
			index, err := s.ResolveIndex(ctx, s.cfg.IndexURL)
			if err != nil {
				return nil, err
			}
			s.index = index
		}
		u, ok := s.index[path.Base(filepath.ToSlash(location))]
		if !ok {
			return nil, fmt.Errorf("reference file %s is not linked from %s", path.Base(location), s.cfg.IndexURL)
		}
		location = u
	}
	if isURL(location) {
		return s.download(ctx, location)
	}
	f, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference file: %w", err)
	}
	return f, nil
}

func isURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

func (s *Source) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make GET request to %s: %w", u, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download %s: received status code %d", u, resp.StatusCode)
	}
	return resp, nil
}

func (s *Source) download(ctx context.Context, u string) (io.ReadCloser, error) {
	resp, err := s.get(ctx, u)
	if err != nil {
		return nil, err
	}
	log.WithField("url", u).Debug("Reference: downloading")
	return resp.Body, nil
}

// ResolveIndex fetches an HTML page and maps the base name of every linked
// .csv file to its absolute URL.
func (s *Source) ResolveIndex(ctx context.Context, indexURL string) (map[string]string, error) {
	base, err := url.Parse(indexURL)
	if err != nil {
		return nil, fmt.Errorf("invalid reference index URL: %w", err)
	}
	resp, err := s.get(ctx, indexURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML from %s: %w", indexURL, err)
	}
	links := make(map[string]string)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil || !strings.HasSuffix(strings.ToLower(ref.Path), ".csv") {
			return
		}
		abs := base.ResolveReference(ref)
		links[path.Base(abs.Path)] = abs.String()
	})
	if len(links) == 0 {
		log.Warnf("Reference: no csv links found on %s", indexURL)
	}
	return links, nil
}

// csvReader tolerates the trailing whitespace and ragged rows found in
// hand-maintained GIS exports.
func csvReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	return cr
}
