package validation

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/registry"
	"github.com/abekarar/openimis-claimslens/internal/rules"
	"github.com/abekarar/openimis-claimslens/internal/settings"
)

// Input is everything a validation pass reads.
type Input struct {
	DocumentID uuid.UUID
	Data       map[string]any
	Claim      *registry.Claim
	Rules      []rules.Rule
	Settings   settings.Settings
}

// Evaluation is the unsaved outcome of one pass.
type Evaluation struct {
	Type             Type
	Status           OverallStatus
	Comparisons      map[string]Comparison
	DiscrepancyCount int
	MatchScore       float64
	Summary          string
	Findings         []Finding
}

// target is a registry field an update proposal would write.
type target struct {
	model registry.Model
	id    uuid.UUID
	field string
}

// Upstream compares the extracted fields with the linked claim. Each
// mismatch becomes a warning finding unless a rule naming the field
// claims it.
func Upstream(in Input) Evaluation {
	c := NewComparer(in.Settings)
	claim := in.Claim
	comparisons := map[string]Comparison{}

	compare := func(field string, ref any) {
		if cmp, ok := c.Compare(in.Data[field], ref); ok {
			comparisons[field] = cmp
		}
	}

	compare("chf_id", claim.Insuree.Fields["chf_id"])
	compare("last_name", claim.Insuree.Fields["last_name"])
	compare("other_names", claim.Insuree.Fields["other_names"])
	compare("dob", claim.Insuree.Fields["dob"])

	var dateFrom any
	if !claim.DateFrom.IsZero() {
		dateFrom = claim.DateFrom
	}
	compare("date_from", dateFrom)
	compare("date_to", claim.Fields["date_to"])
	compare("visit_type", claim.Fields["visit_type"])

	compare("facility_code", claim.Facility.Fields["code"])
	compare("facility_name", claim.Facility.Fields["name"])
	compare("icd_code", claim.Fields["icd_code"])

	compareLines(c, comparisons, "item", in.Data["items"], claim.Items)
	compareLines(c, comparisons, "service", in.Data["services"], claim.Services)

	compare("claimed_amount", claim.Fields["claimed"])

	ev := evaluation(TypeUpstream, comparisons, in.Settings)
	for _, field := range ev.mismatches() {
		ev.Findings = append(ev.Findings, upstreamFindings(in, field, comparisons[field])...)
	}
	return ev
}

// compareLines matches extracted lines to claim lines by code and
// compares quantity and price. An extracted line the claim lacks is a
// mismatch.
func compareLines(c Comparer, comparisons map[string]Comparison, kind string, extracted any, lines []registry.Line) {
	list, ok := extracted.([]any)
	if !ok {
		return
	}

	byCode := make(map[string]registry.Line, len(lines))
	for _, l := range lines {
		byCode[Normalize(l.Code)] = l
	}

	for _, raw := range list {
		line, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		code := fmt.Sprint(line["code"])
		if line["code"] == nil || code == "" {
			continue
		}

		ref, found := byCode[Normalize(code)]
		if !found {
			comparisons[kind+"_"+code] = Comparison{OCRValue: line, ClaimValue: nil, Match: false}
			continue
		}

		qty := line["quantity"]
		if qty == nil {
			qty = line["qty"]
		}
		if cmp, ok := c.Compare(qty, ref.Quantity); ok {
			comparisons[kind+"_"+code+"_qty"] = cmp
		}
		if cmp, ok := c.Compare(line["price"], ref.Price); ok {
			comparisons[kind+"_"+code+"_price"] = cmp
		}
	}
}

func upstreamFindings(in Input, field string, cmp Comparison) []Finding {
	var out []Finding

	for _, rule := range in.Rules {
		def, err := rule.Generic()
		if err != nil || !slices.Contains(def.Fields, field) {
			continue
		}

		if def.Action == rules.ActionUpdateProposal {
			if t, ok := upstreamTarget(in.Claim, field); ok {
				out = append(out, proposalFinding(rule, t, cmp.ClaimValue, cmp.OCRValue))
				continue
			}
		}

		out = append(out, ruleFinding(rule, FindingViolation, rule.Severity, field,
			fmt.Sprintf("%s: extracted value does not match claim data for %s", rule.Code, field),
			map[string]any{"ocr_value": cmp.OCRValue, "claim_value": cmp.ClaimValue},
		))
	}

	if len(out) > 0 {
		return out
	}

	return []Finding{{
		FindingType: FindingWarning,
		Severity:    rules.SeverityWarning,
		Field:       field,
		Description: "extracted value does not match claim data for " + field,
		Details:     map[string]any{"ocr_value": cmp.OCRValue, "claim_value": cmp.ClaimValue},
	}}
}

func upstreamTarget(claim *registry.Claim, field string) (target, bool) {
	switch field {
	case "chf_id", "last_name", "other_names", "dob":
		return target{registry.ModelInsuree, claim.Insuree.ID, field}, true
	case "facility_code":
		return target{registry.ModelHealthFacility, claim.Facility.ID, "code"}, true
	case "facility_name":
		return target{registry.ModelHealthFacility, claim.Facility.ID, "name"}, true
	}
	return target{}, false
}

// Downstream evaluates the active rules against the registry. Each rule
// check contributes comparisons, so a pass with no applicable rule is an
// error result.
func Downstream(ctx context.Context, reg registry.System, in Input) (Evaluation, error) {
	c := NewComparer(in.Settings)
	claim := in.Claim
	comparisons := map[string]Comparison{}
	var findings []Finding

	for _, rule := range in.Rules {
		switch rule.RuleType {
		case rules.TypeEligibility:
			f, err := eligibility(ctx, reg, rule, claim, comparisons)
			if err != nil {
				return Evaluation{}, err
			}
			findings = append(findings, f...)

		case rules.TypeClinical:
			findings = append(findings, clinical(rule, in.Data, comparisons)...)

		case rules.TypeFraud:
			f, err := fraud(ctx, reg, rule, claim, comparisons)
			if err != nil {
				return Evaluation{}, err
			}
			findings = append(findings, f...)

		case rules.TypeRegistry:
			findings = append(findings, registryUpdates(c, rule, in.Data, claim, comparisons)...)
		}
	}

	ev := evaluation(TypeDownstream, comparisons, in.Settings)
	ev.Findings = findings
	return ev, nil
}

func eligibility(ctx context.Context, reg registry.System, rule rules.Rule, claim *registry.Claim, comparisons map[string]Comparison) ([]Finding, error) {
	if claim.DateFrom.IsZero() {
		return nil, nil
	}

	policy, err := reg.ActivePolicy(ctx, claim.InsureeID, claim.DateFrom)
	if err != nil {
		return nil, err
	}

	day := claim.DateFrom.Format(time.DateOnly)
	if policy == nil {
		comparisons["policy"] = Comparison{OCRValue: day, ClaimValue: nil, Match: false}
		return []Finding{ruleFinding(rule, FindingViolation, rules.SeverityError, "policy",
			"no active policy found for insuree on "+day,
			map[string]any{"insuree_id": claim.InsureeID.String(), "claim_date": day},
		)}, nil
	}

	comparisons["policy"] = Comparison{OCRValue: day, ClaimValue: policy.ID, Match: true}
	if policy.ProductID == nil {
		return nil, nil
	}

	cov, err := reg.Coverage(ctx, *policy.ProductID)
	if err != nil {
		return nil, err
	}
	return uncovered(rule, claim, cov, comparisons), nil
}

// uncovered warns about every claimed item and service the policy's
// product does not list.
func uncovered(rule rules.Rule, claim *registry.Claim, cov *registry.Coverage, comparisons map[string]Comparison) []Finding {
	var out []Finding
	check := func(kind string, lines []registry.Line, covers func(string) bool) {
		for _, l := range lines {
			if l.Code == "" {
				continue
			}
			ok := covers(l.Code)
			comparisons[kind+"_"+l.Code+"_coverage"] = Comparison{OCRValue: l.Code, ClaimValue: cov.ProductCode, Match: ok}
			if ok {
				continue
			}
			out = append(out, ruleFinding(rule, FindingWarning, rules.SeverityWarning, kind+"_"+l.Code,
				fmt.Sprintf("%s %s not covered by product %s", kind, l.Code, cov.ProductCode),
				map[string]any{kind + "_code": l.Code, "product_code": cov.ProductCode},
			))
		}
	}
	check("item", claim.Items, cov.CoversItem)
	check("service", claim.Services, cov.CoversService)
	return out
}

func clinical(rule rules.Rule, data map[string]any, comparisons map[string]Comparison) []Finding {
	def, err := rule.Clinical()
	if err != nil || len(def.AllowedICDServiceMap) == 0 {
		return nil
	}

	icd, _ := data["icd_code"].(string)
	allowed, ok := def.AllowedICDServiceMap[icd]
	if !ok {
		return nil
	}

	services, _ := data["services"].([]any)
	var out []Finding
	for _, raw := range services {
		svc, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		code, _ := svc["code"].(string)
		if code == "" {
			continue
		}

		match := slices.Contains(allowed, code)
		comparisons["service_"+code+"_clinical"] = Comparison{OCRValue: code, ClaimValue: allowed, Match: match}
		if match {
			continue
		}

		out = append(out, ruleFinding(rule, FindingWarning, rule.Severity, "service_"+code,
			fmt.Sprintf("service %s not clinically compatible with diagnosis %s", code, icd),
			map[string]any{"icd_code": icd, "service_code": code, "allowed_services": allowed},
		))
	}
	return out
}

func fraud(ctx context.Context, reg registry.System, rule rules.Rule, claim *registry.Claim, comparisons map[string]Comparison) ([]Finding, error) {
	dups, err := reg.Duplicates(ctx, claim)
	if err != nil {
		return nil, err
	}

	comparisons["duplicate_claim"] = Comparison{OCRValue: claim.ID, ClaimValue: dups, Match: len(dups) == 0}
	if len(dups) == 0 {
		return nil, nil
	}

	shown := dups[:min(len(dups), 5)]
	ids := make([]string, len(shown))
	for i, id := range shown {
		ids[i] = id.String()
	}

	return []Finding{ruleFinding(rule, FindingWarning, rule.Severity, "duplicate_claim",
		fmt.Sprintf("potential duplicate: %d other claim(s) with same insuree, facility, and date", len(dups)),
		map[string]any{
			"duplicate_uuids": ids,
			"insuree_chf_id":  claim.Insuree.Fields["chf_id"],
			"facility_code":   claim.Facility.Fields["code"],
			"date_from":       claim.DateFrom.Format(time.DateOnly),
		},
	)}, nil
}

// registryUpdates proposes registry writes for extracted insuree and
// facility values that differ from the registry record. Fields the
// extraction does not carry are skipped.
func registryUpdates(c Comparer, rule rules.Rule, data map[string]any, claim *registry.Claim, comparisons map[string]Comparison) []Finding {
	def, err := rule.Registry()
	if err != nil {
		return nil
	}

	var out []Finding
	check := func(model registry.Model, rec registry.Record, field string, keys ...string) {
		var proposed any
		for _, k := range keys {
			if !empty(data[k]) {
				proposed = data[k]
				break
			}
		}
		if proposed == nil {
			return
		}

		current := rec.Fields[field]
		cmp, ok := c.Compare(proposed, current)
		if !ok {
			return
		}
		comparisons[string(model)+"."+field] = cmp
		if !cmp.Match {
			out = append(out, proposalFinding(rule, target{model, rec.ID, field}, current, proposed))
		}
	}

	for _, f := range def.InsureeFields {
		check(registry.ModelInsuree, claim.Insuree, f, "insuree_"+f, f)
	}
	for _, f := range def.FacilityFields {
		check(registry.ModelHealthFacility, claim.Facility, f, "facility_"+f)
	}
	return out
}

func ruleFinding(rule rules.Rule, kind FindingType, severity rules.Severity, field, description string, details map[string]any) Finding {
	id, code := rule.ID, rule.Code
	return Finding{
		RuleID:      &id,
		RuleCode:    &code,
		FindingType: kind,
		Severity:    severity,
		Field:       field,
		Description: description,
		Details:     details,
	}
}

func proposalFinding(rule rules.Rule, t target, current, proposed any) Finding {
	return ruleFinding(rule, FindingUpdateProposal, rule.Severity, t.field,
		fmt.Sprintf("registry update proposed: %s.%s", t.model, t.field),
		map[string]any{
			"current":      current,
			"proposed":     proposed,
			"target_model": string(t.model),
			"target_uuid":  t.id.String(),
		},
	)
}

func evaluation(t Type, comparisons map[string]Comparison, s settings.Settings) Evaluation {
	status, score, discrepancies := Score(comparisons, s.PartialMatchThreshold)

	summary := fmt.Sprintf("%d/%d fields matched", len(comparisons)-discrepancies, len(comparisons))
	if status == StatusError {
		summary = "no comparable fields"
	}

	return Evaluation{
		Type:             t,
		Status:           status,
		Comparisons:      comparisons,
		DiscrepancyCount: discrepancies,
		MatchScore:       score,
		Summary:          summary,
	}
}

// mismatches returns the mismatched fields in name order.
func (e Evaluation) mismatches() []string {
	var out []string
	for field, c := range e.Comparisons {
		if !c.Match {
			out = append(out, field)
		}
	}
	slices.Sort(out)
	return out
}
