// Package domain contains the core business entities and rules for mailmind:
// fetched messages, stored records, filters, prompts and sentinel values.
// It has no dependencies on adapters or infrastructure.
package domain
