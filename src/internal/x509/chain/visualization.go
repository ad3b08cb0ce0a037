// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// Summary describes one cached signing certificate chain for display.
type Summary struct {
	Fingerprint string
	Subject     string
	Issuer      string
	DNSNames    []string
	NotAfter    time.Time
	KeySize     string
	Status      string
}

// Summarize builds a Summary for the chain stored under fingerprint.
// A nil cert yields an "unparsable" row so broken cache entries stay visible.
func Summarize(fingerprint string, cert *x509.Certificate, now time.Time) Summary {
	if cert == nil {
		return Summary{Fingerprint: fingerprint, Status: "unparsable"}
	}

	status := "valid"
	switch {
	case now.After(cert.NotAfter):
		status = "expired"
	case now.Before(cert.NotBefore):
		status = "not yet valid"
	}

	return Summary{
		Fingerprint: fingerprint,
		Subject:     cert.Subject.CommonName,
		Issuer:      cert.Issuer.CommonName,
		DNSNames:    cert.DNSNames,
		NotAfter:    cert.NotAfter,
		KeySize:     keySize(cert),
		Status:      status,
	}
}

func keySize(cert *x509.Certificate) string {
	switch key := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		return fmt.Sprintf("%d-bit RSA", key.Size()*8)
	case *ecdsa.PublicKey:
		return fmt.Sprintf("%d-bit ECDSA", key.Curve.Params().BitSize)
	default:
		return "unknown"
	}
}

// RenderTable renders cached chains as a markdown table.
//
// Returns:
//   - string: Markdown table, or a placeholder line when there is nothing to show
func RenderTable(summaries []Summary) string {
	if len(summaries) == 0 {
		return "No cached certificates"
	}

	var buf strings.Builder
	table := tablewriter.NewTable(&buf,
		tablewriter.WithRenderer(renderer.NewMarkdown(tw.Rendition{Streaming: true})),
	)

	table.Header([]string{"#", "Fingerprint", "Subject", "Issuer", "SANs", "Valid Until", "Key Size", "Status"})

	var rows [][]string
	for i, s := range summaries {
		validUntil := ""
		if !s.NotAfter.IsZero() {
			validUntil = s.NotAfter.UTC().Format("2006-01-02")
		}

		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			shortFingerprint(s.Fingerprint),
			s.Subject,
			s.Issuer,
			strings.Join(s.DNSNames, ", "),
			validUntil,
			s.KeySize,
			s.Status,
		})
	}

	table.Bulk(rows)
	table.Render()
	return buf.String()
}

func shortFingerprint(fp string) string {
	if len(fp) > 16 {
		return fp[:16]
	}
	return fp
}
