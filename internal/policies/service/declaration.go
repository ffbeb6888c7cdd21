package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"eventcover_backend/internal/policies/repository"
	quoterepo "eventcover_backend/internal/quotes/repository"
	"eventcover_backend/platform/apperr"

	"github.com/google/uuid"
)

// The declaration is a plain one-page summary; layout polish is handled by
// whoever consumes the PDF downstream.
var declarationTmpl = template.Must(template.New("declaration").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Declaration {{.PolicyNumber}}</title></head>
<body>
  <h1>Policy Declaration</h1>
  <p>Policy number: <strong>{{.PolicyNumber}}</strong></p>
  <p>Status: {{.Status}} &mdash; issued {{.IssuedAt}}</p>
  <h2>Insured Event</h2>
  <p>{{.EventType}}{{if .EventDate}} on {{.EventDate}}{{end}}, up to {{.MaxGuests}} guests</p>
  {{if .HolderName}}<h2>Policy Holder</h2><p>{{.HolderName}}, {{.HolderAddress}}</p>{{end}}
  {{if .Venues}}<h2>Venues</h2><ul>{{range .Venues}}<li>{{.}}</li>{{end}}</ul>{{end}}
  <h2>Premium</h2>
  <table>
    <tr><td>Base</td><td>{{.Base}}</td></tr>
    <tr><td>Liability</td><td>{{.Liability}}</td></tr>
    <tr><td>Liquor liability</td><td>{{.Liquor}}</td></tr>
    <tr><td><strong>Total</strong></td><td><strong>{{.Total}}</strong></td></tr>
  </table>
</body>
</html>`))

type declarationData struct {
	PolicyNumber  string
	Status        string
	IssuedAt      string
	EventType     string
	EventDate     string
	MaxGuests     int
	HolderName    string
	HolderAddress string
	Venues        []string
	Base          string
	Liability     string
	Liquor        string
	Total         string
}

func dollars(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

// renderDeclaration builds the declaration HTML and converts it to PDF.
// The renderer is optional wiring; without it document work fails cleanly
// instead of dereferencing a nil interface.
func (s *Service) renderDeclaration(ctx context.Context, policy *repository.Policy, graph *quoterepo.Graph) ([]byte, error) {
	if s.renderer == nil {
		return nil, apperr.Artifact("document renderer is not configured", nil)
	}

	data := declarationData{
		PolicyNumber: policy.PolicyNumber,
		Status:       policy.Status,
		IssuedAt:     policy.CreatedAt.Format(time.DateOnly),
		Base:         dollars(graph.Quote.BasePremiumCents),
		Liability:    dollars(graph.Quote.LiabilityPremiumCents),
		Liquor:       dollars(graph.Quote.LiquorPremiumCents),
		Total:        dollars(graph.Quote.TotalPremiumCents),
	}
	if graph.Event != nil {
		data.EventType = graph.Event.EventType
		data.MaxGuests = graph.Event.MaxGuests
		if graph.Event.EventDate != nil {
			data.EventDate = graph.Event.EventDate.Format(time.DateOnly)
		}
	}
	if graph.Holder != nil {
		data.HolderName = graph.Holder.FirstName + " " + graph.Holder.LastName
		data.HolderAddress = fmt.Sprintf("%s, %s, %s %s", graph.Holder.Address, graph.Holder.City, graph.Holder.State, graph.Holder.Zip)
	}
	for _, v := range graph.Venues {
		label := fmt.Sprintf("%s: %s (%s)", v.Slot, v.Name, v.VenueType)
		data.Venues = append(data.Venues, label)
	}

	var buf bytes.Buffer
	if err := declarationTmpl.Execute(&buf, data); err != nil {
		return nil, apperr.Artifact("failed to render declaration html", err)
	}

	pdf, err := s.renderer.ConvertHTML(ctx, buf.Bytes())
	if err != nil {
		return nil, apperr.Artifact("failed to convert declaration to pdf", err)
	}
	return pdf, nil
}

// IssueDeclaration renders and stores the declaration for a freshly issued
// policy and returns a presigned download link. Called from the PolicyIssued
// subscriber; failures are logged there, the policy itself stands.
func (s *Service) IssueDeclaration(ctx context.Context, policyID uuid.UUID) (string, error) {
	policy, graph, err := s.GetDetail(ctx, policyID)
	if err != nil {
		return "", err
	}

	pdf, err := s.renderDeclaration(ctx, policy, graph)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("policies/%s/declaration.pdf", policy.PolicyNumber)
	if _, err := s.artifacts.Put(ctx, s.bucket, key, "application/pdf", bytes.NewReader(pdf), int64(len(pdf))); err != nil {
		return "", apperr.Artifact("failed to store declaration", err)
	}

	url, err := s.artifacts.GenerateDownloadURL(ctx, s.bucket, key)
	if err != nil {
		return "", apperr.Artifact("failed to presign declaration", err)
	}
	return url.URL, nil
}
