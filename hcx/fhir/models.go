// Package fhir contains structs representing the FHIR R4 data exchanged with
// the clearinghouse. These are lighter weight definitions containing the
// fields the app needs, not a complete rendition of the specification.
package fhir

import (
	"encoding/json"

	"github.com/pkg/errors"
)

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// Code returns the first coding's code, or "".
func (c *CodeableConcept) Code() string {
	if c == nil || len(c.Coding) == 0 {
		return ""
	}
	return c.Coding[0].Code
}

type Identifier struct {
	Use    string           `json:"use,omitempty"`
	Type   *CodeableConcept `json:"type,omitempty"`
	System string           `json:"system,omitempty"`
	Value  string           `json:"value,omitempty"`
}

type Reference struct {
	Reference  string      `json:"reference,omitempty"`
	Type       string      `json:"type,omitempty"`
	Identifier *Identifier `json:"identifier,omitempty"`
	Display    string      `json:"display,omitempty"`
}

type Period struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

type Money struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency,omitempty"`
}

type Quantity struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
	Code  string  `json:"code,omitempty"`
}

type Attachment struct {
	ContentType string `json:"contentType,omitempty"`
	Data        string `json:"data,omitempty"`
	Title       string `json:"title,omitempty"`
	Creation    string `json:"creation,omitempty"`
}

type HumanName struct {
	Use    string   `json:"use,omitempty"`
	Text   string   `json:"text,omitempty"`
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
}

type ContactPoint struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
}

// Extension covers the value types the exchange profiles actually use.
// Exactly one Value* field should be set.
type Extension struct {
	URL                  string           `json:"url"`
	ValueString          string           `json:"valueString,omitempty"`
	ValueCode            string           `json:"valueCode,omitempty"`
	ValueDate            string           `json:"valueDate,omitempty"`
	ValueDecimal         *float64         `json:"valueDecimal,omitempty"`
	ValueBoolean         *bool            `json:"valueBoolean,omitempty"`
	ValueMoney           *Money           `json:"valueMoney,omitempty"`
	ValueIdentifier      *Identifier      `json:"valueIdentifier,omitempty"`
	ValueCodeableConcept *CodeableConcept `json:"valueCodeableConcept,omitempty"`
	ValueReference       *Reference       `json:"valueReference,omitempty"`
}

// FindExtension returns the first extension with the given URL, or nil.
func FindExtension(exts []Extension, url string) *Extension {
	for i := range exts {
		if exts[i].URL == url {
			return &exts[i]
		}
	}
	return nil
}

type Meta struct {
	Profile     []string `json:"profile,omitempty"`
	LastUpdated string   `json:"lastUpdated,omitempty"`
}

// Bundle is the envelope: a single root document of type "message" whose
// first entry is always the MessageHeader.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Meta         *Meta         `json:"meta,omitempty"`
	Type         string        `json:"type"`
	Timestamp    string        `json:"timestamp,omitempty"`
	Entries      []BundleEntry `json:"entry,omitempty"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

// NewEntry marshals resource into a bundle entry carrying fullURL.
func NewEntry(fullURL string, resource interface{}) (BundleEntry, error) {
	raw, err := json.Marshal(resource)
	if err != nil {
		return BundleEntry{}, errors.Wrap(err, "failed to marshal bundle entry resource")
	}
	return BundleEntry{FullURL: fullURL, Resource: raw}, nil
}

// ResourceType probes the entry's resource for its resourceType. Returns ""
// for entries that cannot be decoded; the caller decides whether that is an
// error or just an entry to skip.
func (e *BundleEntry) ResourceType() string {
	var probe struct {
		ResourceType string `json:"resourceType"`
	}
	if err := json.Unmarshal(e.Resource, &probe); err != nil {
		return ""
	}
	return probe.ResourceType
}

// Decode unmarshals the entry's resource into v.
func (e *BundleEntry) Decode(v interface{}) error {
	if err := json.Unmarshal(e.Resource, v); err != nil {
		return errors.Wrap(err, "failed to decode bundle entry resource")
	}
	return nil
}

// Header returns the bundle's MessageHeader, which the exchange requires to
// be the first entry. Returns nil when absent or undecodable.
func (b *Bundle) Header() *MessageHeader {
	for i := range b.Entries {
		if b.Entries[i].ResourceType() != ResourceTypeMessageHeader {
			continue
		}
		var h MessageHeader
		if err := b.Entries[i].Decode(&h); err != nil {
			return nil
		}
		return &h
	}
	return nil
}

// EntriesOfType returns all entries whose resource is of the given kind.
func (b *Bundle) EntriesOfType(resourceType string) []BundleEntry {
	var out []BundleEntry
	for _, e := range b.Entries {
		if e.ResourceType() == resourceType {
			out = append(out, e)
		}
	}
	return out
}

// EntryOfType returns the first entry of the given kind, or nil.
func (b *Bundle) EntryOfType(resourceType string) *BundleEntry {
	for i := range b.Entries {
		if b.Entries[i].ResourceType() == resourceType {
			return &b.Entries[i]
		}
	}
	return nil
}

// Resource type discriminators. Inbound messages are categorized by resource
// kind, not by a single discriminant field.
const (
	ResourceTypeBundle               = "Bundle"
	ResourceTypeMessageHeader        = "MessageHeader"
	ResourceTypeClaim                = "Claim"
	ResourceTypeClaimResponse        = "ClaimResponse"
	ResourceTypePatient              = "Patient"
	ResourceTypeOrganization         = "Organization"
	ResourceTypeCoverage             = "Coverage"
	ResourceTypePractitioner         = "Practitioner"
	ResourceTypeEncounter            = "Encounter"
	ResourceTypeVisionPrescription   = "VisionPrescription"
	ResourceTypeTask                 = "Task"
	ResourceTypeCommunication        = "Communication"
	ResourceTypeCommunicationRequest = "CommunicationRequest"
	ResourceTypeOperationOutcome     = "OperationOutcome"
)

type MessageHeader struct {
	ResourceType string               `json:"resourceType"`
	ID           string               `json:"id,omitempty"`
	Meta         *Meta                `json:"meta,omitempty"`
	EventCoding  *Coding              `json:"eventCoding,omitempty"`
	Destination  []MessageDestination `json:"destination,omitempty"`
	Sender       *Reference           `json:"sender,omitempty"`
	Source       *MessageSource       `json:"source,omitempty"`
	Response     *MessageResponse     `json:"response,omitempty"`
	Focus        []Reference          `json:"focus,omitempty"`
}

type MessageDestination struct {
	Endpoint string     `json:"endpoint,omitempty"`
	Receiver *Reference `json:"receiver,omitempty"`
}

type MessageSource struct {
	Endpoint string `json:"endpoint,omitempty"`
}

type MessageResponse struct {
	Identifier string `json:"identifier,omitempty"`
	Code       string `json:"code,omitempty"`
}

type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue,omitempty"`
}

type OperationOutcomeIssue struct {
	Severity    string           `json:"severity,omitempty"`
	Code        string           `json:"code,omitempty"`
	Details     *CodeableConcept `json:"details,omitempty"`
	Diagnostics string           `json:"diagnostics,omitempty"`
}
