package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/54b3r/civic-go/internal/handlers"
	"github.com/54b3r/civic-go/internal/rag"
	"github.com/54b3r/civic-go/internal/retrieval"
	"github.com/54b3r/civic-go/internal/structured"
)

type fakeRetriever struct {
	gotQuery  string
	gotTopK   int
	gotDomain rag.Domain
	result    *retrieval.Result
	err       error
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, topK int, domain rag.Domain) (*retrieval.Result, error) {
	f.gotQuery, f.gotTopK, f.gotDomain = query, topK, domain
	return f.result, f.err
}

type fakeRecords struct {
	matches []structured.Match
	gotQ    string
	gotD    rag.Domain
}

func (f *fakeRecords) Search(query string, domain rag.Domain) []structured.Match {
	f.gotQ, f.gotD = query, domain
	return f.matches
}

func Test_SearchTool_PassesArguments(t *testing.T) {
	t.Parallel()
	r := &fakeRetriever{result: &retrieval.Result{
		Chunks: []rag.SearchResult{{
			Content:  "Trading licences are renewed every January.",
			Metadata: rag.Metadata{Title: "licensing_0", Domain: rag.DomainLicensing},
		}},
	}}
	out, err := NewSearchTool(r).InvokableRun(context.Background(),
		`{"query":"renew trading licence","domain":"Licensing","top_k":3}`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if r.gotQuery != "renew trading licence" || r.gotTopK != 3 || r.gotDomain != rag.DomainLicensing {
		t.Errorf("unexpected arguments: %q %d %q", r.gotQuery, r.gotTopK, r.gotDomain)
	}
	if !strings.Contains(out, "[licensing_0 | licensing]") {
		t.Errorf("context block missing chunk label: %q", out)
	}
}

func Test_SearchTool_EmptyResult(t *testing.T) {
	t.Parallel()
	r := &fakeRetriever{result: &retrieval.Result{}}
	out, err := NewSearchTool(r).InvokableRun(context.Background(), `{"query":"zoo hours"}`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if r.gotDomain != "" {
		t.Errorf("omitted domain should be left for the classifier, got %q", r.gotDomain)
	}
	if !strings.HasPrefix(out, "No council information") {
		t.Errorf("unexpected output %q", out)
	}
}

func Test_SearchTool_Errors(t *testing.T) {
	t.Parallel()
	boom := errors.New("store offline")
	cases := []struct {
		name string
		args string
		err  error
	}{
		{"invalid json", `{"query":`, nil},
		{"missing query", `{}`, nil},
		{"unknown domain", `{"query":"x","domain":"weather"}`, nil},
		{"retrieval failure", `{"query":"x"}`, boom},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := &fakeRetriever{result: &retrieval.Result{}, err: tc.err}
			_, err := NewSearchTool(r).InvokableRun(context.Background(), tc.args)
			if err == nil {
				t.Fatal("want error, got nil")
			}
			if tc.err != nil && !errors.Is(err, tc.err) {
				t.Errorf("want wrapped %v, got %v", tc.err, err)
			}
		})
	}
}

func Test_LookupTool_RendersMatches(t *testing.T) {
	t.Parallel()
	recs := &fakeRecords{matches: []structured.Match{{
		Source: "bills.json",
		Record: structured.Record{{Key: "account", Value: "12345"}, {Key: "balance", Value: "150.00"}},
		Domain: rag.DomainBilling,
	}}}
	out, err := NewLookupTool(recs).InvokableRun(context.Background(), `{"query":"12345","domain":"billing"}`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if recs.gotQ != "12345" || recs.gotD != rag.DomainBilling {
		t.Errorf("unexpected arguments: %q %q", recs.gotQ, recs.gotD)
	}
	want := "1 record(s) matched:\n- (bills.json) account: 12345; balance: 150.00"
	if out != want {
		t.Errorf("want %q, got %q", want, out)
	}
}

func Test_LookupTool_CapsOutput(t *testing.T) {
	t.Parallel()
	var matches []structured.Match
	for range maxLookupRecords + 2 {
		matches = append(matches, structured.Match{Source: "s", Record: structured.Record{{Key: "k", Value: "v"}}})
	}
	out, err := NewLookupTool(&fakeRecords{matches: matches}).InvokableRun(context.Background(), `{"query":"v"}`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.HasPrefix(out, "12 record(s) matched, showing the first 10:") {
		t.Errorf("unexpected header: %q", out)
	}
	if n := strings.Count(out, "\n- "); n != maxLookupRecords {
		t.Errorf("want %d lines, got %d", maxLookupRecords, n)
	}
}

func Test_LookupTool_NoMatches(t *testing.T) {
	t.Parallel()
	out, err := NewLookupTool(&fakeRecords{}).InvokableRun(context.Background(), `{"query":"nothing"}`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != `No records contain "nothing".` {
		t.Errorf("unexpected output %q", out)
	}
}

func Test_FeeTool_Fee(t *testing.T) {
	t.Parallel()
	out, err := NewFeeTool().InvokableRun(context.Background(),
		`{"operation":"fee","base_fee":200,"penalty_rate":0.5,"days_overdue":65}`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var fee handlers.Fee
	if err := json.Unmarshal([]byte(out), &fee); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fee.Penalty != 200 || fee.Total != 400 || fee.DaysOverdue != 65 {
		t.Errorf("unexpected fee %+v", fee)
	}
}

func Test_FeeTool_DefaultPenaltyRate(t *testing.T) {
	t.Parallel()
	out, err := NewFeeTool().InvokableRun(context.Background(),
		`{"operation":"fee","base_fee":50,"days_overdue":30}`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var fee handlers.Fee
	if err := json.Unmarshal([]byte(out), &fee); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fee.Penalty != 5 || fee.Total != 55 {
		t.Errorf("unexpected fee %+v", fee)
	}
}

func Test_FeeTool_Balance(t *testing.T) {
	t.Parallel()
	out, err := NewFeeTool().InvokableRun(context.Background(),
		`{"operation":"balance","previous_balance":100,"payments":[40,10],"charges":[25]}`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var bal handlers.BillBalance
	if err := json.Unmarshal([]byte(out), &bal); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if bal.CurrentBalance != 75 || bal.TotalPayments != 50 || bal.TotalCharges != 25 {
		t.Errorf("unexpected balance %+v", bal)
	}
}

func Test_FeeTool_Percentage(t *testing.T) {
	t.Parallel()
	out, err := NewFeeTool().InvokableRun(context.Background(),
		`{"operation":"percentage","value":200,"percent":15}`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var got map[string]float64
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["result"] != 30 {
		t.Errorf("want 30, got %v", got["result"])
	}
}

func Test_FeeTool_UnknownOperation(t *testing.T) {
	t.Parallel()
	if _, err := NewFeeTool().InvokableRun(context.Background(), `{"operation":"refund"}`); err == nil {
		t.Fatal("want error for unknown operation")
	}
}

func Test_Set(t *testing.T) {
	t.Parallel()
	if got := len(Set(nil, nil)); got != 1 {
		t.Errorf("want only the fee tool, got %d tools", got)
	}
	all := Set(&fakeRetriever{}, &fakeRecords{})
	names := make([]string, 0, len(all))
	for _, bt := range all {
		info, err := bt.Info(context.Background())
		if err != nil {
			t.Fatalf("info: %v", err)
		}
		names = append(names, info.Name)
	}
	if strings.Join(names, ",") != "civic_search,structured_lookup,fee_calculator" {
		t.Errorf("unexpected tool set %v", names)
	}
}
