package crm

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"
)

// ReportStore computes read-only aggregations over the CRM tables
type ReportStore struct {
	db *sql.DB
}

// NewReportStore creates a report store
func NewReportStore(db *sql.DB) *ReportStore {
	return &ReportStore{db: db}
}

// ReportFilter narrows report windows. AssignedTo carries the row scope
// resolved by the caller; nil means organization-wide.
type ReportFilter struct {
	From       *time.Time
	To         *time.Time
	AssignedTo *int64
}

func (f ReportFilter) apply(b *clauseBuilder, alias string) {
	if f.From != nil {
		b.add(alias+".created_at >= $%d", *f.From)
	}
	if f.To != nil {
		b.add(alias+".created_at <= $%d", *f.To)
	}
	if f.AssignedTo != nil {
		b.add(alias+".assigned_to = $%d", *f.AssignedTo)
	}
}

// SalesSummary totals the deal pipeline
type SalesSummary struct {
	TotalDeals int     `json:"total_deals"`
	WonDeals   int     `json:"won_deals"`
	LostDeals  int     `json:"lost_deals"`
	TotalValue float64 `json:"total_value"`
	WonValue   float64 `json:"won_value"`
	WinRate    float64 `json:"win_rate"`
}

// SalesReport breaks the pipeline down by stage
type SalesReport struct {
	Summary      SalesSummary          `json:"summary"`
	Pipeline     map[DealStage]int     `json:"pipeline"`
	ValueByStage map[DealStage]float64 `json:"value_by_stage"`
}

// Sales aggregates deal counts and value per stage
func (s *ReportStore) Sales(ctx context.Context, filter ReportFilter) (*SalesReport, error) {
	var b clauseBuilder
	filter.apply(&b, "d")

	query := `SELECT d.stage, COUNT(*), COALESCE(SUM(d.value), 0) FROM deals d` +
		b.where() + ` GROUP BY d.stage`

	rows, err := s.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run sales report: %w", err)
	}
	defer rows.Close()

	report := &SalesReport{
		Pipeline:     make(map[DealStage]int),
		ValueByStage: make(map[DealStage]float64),
	}
	for _, stage := range []DealStage{DealProspecting, DealProposal, DealNegotiation, DealClosedWon, DealClosedLost} {
		report.Pipeline[stage] = 0
		report.ValueByStage[stage] = 0
	}

	for rows.Next() {
		var stage DealStage
		var count int
		var value float64
		if err := rows.Scan(&stage, &count, &value); err != nil {
			return nil, fmt.Errorf("failed to scan sales report row: %w", err)
		}
		report.Pipeline[stage] = count
		report.ValueByStage[stage] = value
		report.Summary.TotalDeals += count
		report.Summary.TotalValue += value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	report.Summary.WonDeals = report.Pipeline[DealClosedWon]
	report.Summary.LostDeals = report.Pipeline[DealClosedLost]
	report.Summary.WonValue = report.ValueByStage[DealClosedWon]
	report.Summary.WinRate = rate(report.Summary.WonDeals, report.Summary.TotalDeals)

	return report, nil
}

// LeadsSummary totals the lead funnel
type LeadsSummary struct {
	TotalLeads     int     `json:"total_leads"`
	ConvertedLeads int     `json:"converted_leads"`
	ConversionRate float64 `json:"conversion_rate"`
}

// SourceCount counts leads attributed to one campaign
type SourceCount struct {
	CampaignID   int64  `json:"campaign_id"`
	CampaignName string `json:"campaign_name"`
	Leads        int    `json:"leads"`
}

// LeadsReport breaks the funnel down by status and source campaign
type LeadsReport struct {
	Summary     LeadsSummary       `json:"summary"`
	StatusCount map[LeadStatus]int `json:"status_count"`
	BySource    []SourceCount      `json:"by_source"`
}

// Leads aggregates lead counts by status plus source attribution
func (s *ReportStore) Leads(ctx context.Context, filter ReportFilter) (*LeadsReport, error) {
	var b clauseBuilder
	filter.apply(&b, "l")

	query := `SELECT l.status, COUNT(*),
		COUNT(*) FILTER (WHERE l.converted_at IS NOT NULL)
		FROM leads l` + b.where() + ` GROUP BY l.status`

	rows, err := s.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run leads report: %w", err)
	}

	report := &LeadsReport{StatusCount: make(map[LeadStatus]int), BySource: []SourceCount{}}
	for _, status := range []LeadStatus{LeadNew, LeadContacted, LeadQualified, LeadLost} {
		report.StatusCount[status] = 0
	}

	for rows.Next() {
		var status LeadStatus
		var count, converted int
		if err := rows.Scan(&status, &count, &converted); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan leads report row: %w", err)
		}
		report.StatusCount[status] = count
		report.Summary.TotalLeads += count
		report.Summary.ConvertedLeads += converted
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	report.Summary.ConversionRate = rate(report.Summary.ConvertedLeads, report.Summary.TotalLeads)

	var sb clauseBuilder
	filter.apply(&sb, "l")
	sb.clauses = append(sb.clauses, "l.source_id IS NOT NULL")

	sourceQuery := `SELECT l.source_id, c.name, COUNT(*)
		FROM leads l JOIN campaigns c ON c.id = l.source_id` +
		sb.where() + ` GROUP BY l.source_id, c.name ORDER BY COUNT(*) DESC`

	sourceRows, err := s.db.QueryContext(ctx, sourceQuery, sb.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run lead source report: %w", err)
	}
	defer sourceRows.Close()

	for sourceRows.Next() {
		var sc SourceCount
		if err := sourceRows.Scan(&sc.CampaignID, &sc.CampaignName, &sc.Leads); err != nil {
			return nil, fmt.Errorf("failed to scan lead source row: %w", err)
		}
		report.BySource = append(report.BySource, sc)
	}
	return report, sourceRows.Err()
}

// ProductivityRow is one sales user's activity totals
type ProductivityRow struct {
	UserID         int64   `json:"user_id"`
	UserName       string  `json:"user_name"`
	Email          string  `json:"email"`
	Leads          int     `json:"leads"`
	Deals          int     `json:"deals"`
	WonDeals       int     `json:"won_deals"`
	DealValue      float64 `json:"deal_value"`
	Tasks          int     `json:"tasks"`
	CompletedTasks int     `json:"completed_tasks"`
	CompletionRate float64 `json:"completion_rate"`
}

// Productivity totals leads, deals, and tasks per sales user. Covers
// Sales Executives and Sales Managers; the date window narrows every
// count.
func (s *ReportStore) Productivity(ctx context.Context, filter ReportFilter) ([]*ProductivityRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, first_name, last_name, email FROM users
		WHERE role IN ($1, $2) ORDER BY id`,
		"Sales Executive", "Sales Manager")
	if err != nil {
		return nil, fmt.Errorf("failed to list sales users: %w", err)
	}

	byUser := make(map[int64]*ProductivityRow)
	report := make([]*ProductivityRow, 0)
	for rows.Next() {
		var row ProductivityRow
		var first, last string
		if err := rows.Scan(&row.UserID, &first, &last, &row.Email); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan sales user: %w", err)
		}
		row.UserName = first + " " + last
		byUser[row.UserID] = &row
		report = append(report, &row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	window := ReportFilter{From: filter.From, To: filter.To}

	var lb clauseBuilder
	window.apply(&lb, "l")
	lb.clauses = append(lb.clauses, "l.assigned_to IS NOT NULL")
	if err := s.countByAssignee(ctx,
		`SELECT l.assigned_to, COUNT(*) FROM leads l`+lb.where()+` GROUP BY l.assigned_to`,
		lb.args, func(row *ProductivityRow, count int) { row.Leads = count }, byUser); err != nil {
		return nil, err
	}

	var deb clauseBuilder
	window.apply(&deb, "d")
	deb.clauses = append(deb.clauses, "d.assigned_to IS NOT NULL")
	dealQuery := `SELECT d.assigned_to, COUNT(*),
		COUNT(*) FILTER (WHERE d.stage = 'Closed Won'),
		COALESCE(SUM(d.value) FILTER (WHERE d.stage = 'Closed Won'), 0)
		FROM deals d` + deb.where() + ` GROUP BY d.assigned_to`
	dealRows, err := s.db.QueryContext(ctx, dealQuery, deb.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run productivity report: %w", err)
	}
	for dealRows.Next() {
		var userID int64
		var deals, won int
		var value float64
		if err := dealRows.Scan(&userID, &deals, &won, &value); err != nil {
			dealRows.Close()
			return nil, fmt.Errorf("failed to scan productivity row: %w", err)
		}
		if row, ok := byUser[userID]; ok {
			row.Deals = deals
			row.WonDeals = won
			row.DealValue = value
		}
	}
	dealRows.Close()
	if err := dealRows.Err(); err != nil {
		return nil, err
	}

	var tb clauseBuilder
	window.apply(&tb, "t")
	tb.clauses = append(tb.clauses, "t.assigned_to IS NOT NULL")
	taskQuery := `SELECT t.assigned_to, COUNT(*),
		COUNT(*) FILTER (WHERE t.status = 'Completed')
		FROM tasks t` + tb.where() + ` GROUP BY t.assigned_to`
	taskRows, err := s.db.QueryContext(ctx, taskQuery, tb.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run productivity report: %w", err)
	}
	for taskRows.Next() {
		var userID int64
		var tasks, completed int
		if err := taskRows.Scan(&userID, &tasks, &completed); err != nil {
			taskRows.Close()
			return nil, fmt.Errorf("failed to scan productivity row: %w", err)
		}
		if row, ok := byUser[userID]; ok {
			row.Tasks = tasks
			row.CompletedTasks = completed
		}
	}
	taskRows.Close()
	if err := taskRows.Err(); err != nil {
		return nil, err
	}

	for _, row := range report {
		row.CompletionRate = rate(row.CompletedTasks, row.Tasks)
	}
	return report, nil
}

func (s *ReportStore) countByAssignee(ctx context.Context, query string, args []interface{},
	assign func(*ProductivityRow, int), byUser map[int64]*ProductivityRow) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to run productivity report: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID int64
		var count int
		if err := rows.Scan(&userID, &count); err != nil {
			return fmt.Errorf("failed to scan productivity row: %w", err)
		}
		if row, ok := byUser[userID]; ok {
			assign(row, count)
		}
	}
	return rows.Err()
}

// CampaignPerformance is one campaign's outcome totals. Revenue is the
// closed-won deal value attributed to the campaign as source.
type CampaignPerformance struct {
	CampaignID     int64   `json:"campaign_id"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	Status         string  `json:"status"`
	Budget         float64 `json:"budget"`
	LeadsGenerated int     `json:"leads_generated"`
	DealsWon       int     `json:"deals_won"`
	Revenue        float64 `json:"revenue"`
	ROI            float64 `json:"roi"`
	ConversionRate float64 `json:"conversion_rate"`
}

// Campaigns reports per-campaign performance across all campaigns
func (s *ReportStore) Campaigns(ctx context.Context) ([]*CampaignPerformance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.type, c.status, c.budget, c.leads_generated, c.deals_won,
			COALESCE(SUM(d.value) FILTER (WHERE d.stage = 'Closed Won'), 0)
		FROM campaigns c
		LEFT JOIN deals d ON d.source_id = c.id
		GROUP BY c.id
		ORDER BY c.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to run campaign report: %w", err)
	}
	defer rows.Close()

	report := make([]*CampaignPerformance, 0)
	for rows.Next() {
		var p CampaignPerformance
		if err := rows.Scan(&p.CampaignID, &p.Name, &p.Type, &p.Status, &p.Budget,
			&p.LeadsGenerated, &p.DealsWon, &p.Revenue); err != nil {
			return nil, fmt.Errorf("failed to scan campaign report row: %w", err)
		}
		if p.Budget > 0 {
			p.ROI = round2((p.Revenue - p.Budget) / p.Budget * 100)
		}
		p.ConversionRate = rate(p.DealsWon, p.LeadsGenerated)
		report = append(report, &p)
	}
	return report, rows.Err()
}

// rate is a two-decimal percentage; zero denominators yield zero
func rate(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round2(float64(part) / float64(whole) * 100)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
