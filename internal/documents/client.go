package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/frahmantamala/hr-ops/internal/core/rules"
	"github.com/frahmantamala/hr-ops/internal/employee"
	"github.com/frahmantamala/hr-ops/internal/settlement"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type Template string

const (
	TemplateRelievingLetter     Template = "relieving_letter"
	TemplateExperienceLetter    Template = "experience_letter"
	TemplateSettlementStatement Template = "settlement_statement"
	TemplateFinalPayslip        Template = "final_payslip"
)

type Config struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	MaxConcurrency int
}

// Client renders settlement artifacts through the external document service.
type Client struct {
	baseURL        string
	apiKey         string
	maxConcurrency int
	httpClient     *http.Client
	logger         *slog.Logger
}

func NewClient(config Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	maxConcurrency := config.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}

	return &Client{
		baseURL:        config.BaseURL,
		apiKey:         config.APIKey,
		maxConcurrency: maxConcurrency,
		httpClient:     &http.Client{Timeout: timeout},
		logger:         logger.With("component", "documents"),
	}
}

type Company struct {
	Name                 string `json:"name"`
	SignatoryName        string `json:"signatory_name"`
	SignatoryDesignation string `json:"signatory_designation"`
}

type RenderRequest struct {
	JobID        string                 `json:"job_id"`
	Template     Template               `json:"template"`
	SettlementID int64                  `json:"settlement_id"`
	Employee     *employee.Employee     `json:"employee"`
	Settlement   *settlement.Settlement `json:"settlement"`
	Company      Company                `json:"company"`
}

type RenderResult struct {
	JobID  string `json:"job_id"`
	Key    string `json:"key"`
	Status string `json:"status"`
}

// RenderAll renders every artifact enabled in docs concurrently. Any failure
// fails the whole batch and no keys are returned.
func (c *Client) RenderAll(ctx context.Context, s *settlement.Settlement, emp *employee.Employee, docs rules.Documents) (settlement.DocumentKeys, error) {
	company := Company{
		Name:                 docs.CompanyName,
		SignatoryName:        docs.SignatoryName,
		SignatoryDesignation: docs.SignatoryDesignation,
	}

	targets := map[Template]**string{}
	var keys settlement.DocumentKeys
	if docs.RelievingLetter {
		targets[TemplateRelievingLetter] = &keys.RelievingLetter
	}
	if docs.ExperienceLetter {
		targets[TemplateExperienceLetter] = &keys.ExperienceLetter
	}
	if docs.SettlementStatement {
		targets[TemplateSettlementStatement] = &keys.SettlementStatement
	}
	if docs.FinalPayslip {
		targets[TemplateFinalPayslip] = &keys.FinalPayslip
	}

	if len(targets) == 0 {
		c.logger.Info("no documents enabled", "settlement_id", s.ID)
		return keys, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrency)

	for tmpl, dst := range targets {
		tmpl, dst := tmpl, dst
		g.Go(func() error {
			result, err := c.Render(gctx, RenderRequest{
				JobID:        uuid.NewString(),
				Template:     tmpl,
				SettlementID: s.ID,
				Employee:     emp,
				Settlement:   s,
				Company:      company,
			})
			if err != nil {
				return err
			}
			key := result.Key
			*dst = &key
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return settlement.DocumentKeys{}, err
	}

	c.logger.Info("documents rendered", "settlement_id", s.ID, "count", len(targets))
	return keys, nil
}

// Render posts one render job and returns the stored document key.
func (c *Client) Render(ctx context.Context, req RenderRequest) (*RenderResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal render request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/render", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", req.JobID)
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug("rendering document",
		"job_id", req.JobID,
		"template", req.Template,
		"settlement_id", req.SettlementID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("render %s: HTTP request failed: %w", req.Template, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("render %s: document service returned status %d: %s", req.Template, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var apiResponse struct {
		Data RenderResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("render %s: failed to decode response: %w", req.Template, err)
	}
	if apiResponse.Data.Key == "" {
		return nil, fmt.Errorf("render %s: document service returned no key", req.Template)
	}

	c.logger.Info("document rendered",
		"job_id", req.JobID,
		"template", req.Template,
		"key", apiResponse.Data.Key)

	return &apiResponse.Data, nil
}
