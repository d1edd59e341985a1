// Package triage provides the business boundary for sift's support ticket
// triage system. It defines the Service (lifecycle, async dispatch, reviews),
// Engine (pure pipeline orchestration: redact, classify, retrieve, draft,
// decide), Store interface (persistence), the deterministic decision policy,
// and domain models.
package triage
