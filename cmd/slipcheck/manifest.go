package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/slipcheck/internal/config"
	"github.com/Veraticus/slipcheck/internal/engine"
	"github.com/Veraticus/slipcheck/internal/model"
	"gopkg.in/yaml.v3"
)

// manifestEntry is one payment in a batch manifest.
type manifestEntry struct {
	Image        string `yaml:"image"`
	Text         string `yaml:"text"`
	Tenant       string `yaml:"tenant"`
	Customer     string `yaml:"customer"`
	CustomerName string `yaml:"customer_name"`
	Invoice      string `yaml:"invoice"`
	Amount       string `yaml:"amount"`
	Currency     string `yaml:"currency"`
	Recipient    string `yaml:"recipient"`
	Account      string `yaml:"account"`
}

// manifest is a batch file. Defaults fill empty fields of every entry.
type manifest struct {
	Defaults manifestEntry   `yaml:"defaults"`
	Payments []manifestEntry `yaml:"payments"`
}

var errEmptyManifest = errors.New("manifest has no payments")

// loadManifest parses a manifest. Relative image paths resolve against the
// manifest's directory.
func loadManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(config.ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := parseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	base := filepath.Dir(config.ExpandPath(path))
	for i := range m.Payments {
		if img := m.Payments[i].Image; img != "" && !filepath.IsAbs(img) {
			m.Payments[i].Image = filepath.Join(base, img)
		}
	}
	return m, nil
}

func parseManifest(data []byte) (*manifest, error) {
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	if len(m.Payments) == 0 {
		return nil, errEmptyManifest
	}

	for i := range m.Payments {
		p := &m.Payments[i]
		p.applyDefaults(m.Defaults)
		if p.Tenant == "" || p.Customer == "" || p.Invoice == "" {
			return nil, fmt.Errorf("payment %d: tenant, customer and invoice are required", i+1)
		}
		if p.Image == "" && strings.TrimSpace(p.Text) == "" {
			return nil, fmt.Errorf("payment %d (%s): image or text is required", i+1, p.Invoice)
		}
		if _, err := parseExpectedAmount(p.Amount); err != nil {
			return nil, fmt.Errorf("payment %d (%s): %w", i+1, p.Invoice, err)
		}
	}
	return &m, nil
}

func (e *manifestEntry) applyDefaults(d manifestEntry) {
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&e.Tenant, d.Tenant)
	fill(&e.Customer, d.Customer)
	fill(&e.CustomerName, d.CustomerName)
	fill(&e.Currency, d.Currency)
	fill(&e.Recipient, d.Recipient)
	fill(&e.Account, d.Account)
}

// request reads the image and converts the entry into a coordinator request.
func (e manifestEntry) request() (engine.VerifyRequest, error) {
	amount, err := parseExpectedAmount(e.Amount)
	if err != nil {
		return engine.VerifyRequest{}, err
	}
	req := engine.VerifyRequest{
		Text:       e.Text,
		TenantID:   e.Tenant,
		CustomerID: e.Customer,
		InvoiceID:  e.Invoice,
		Invoice: model.Invoice{
			ExpectedAmount:        amount,
			ExpectedCurrency:      strings.ToUpper(e.Currency),
			ExpectedRecipientName: e.Recipient,
			ExpectedAccount:       e.Account,
			CustomerName:          e.CustomerName,
		},
	}
	if e.Image != "" {
		req.Image, err = os.ReadFile(e.Image)
		if err != nil {
			return engine.VerifyRequest{}, fmt.Errorf("failed to read image: %w", err)
		}
	}
	return req, nil
}
