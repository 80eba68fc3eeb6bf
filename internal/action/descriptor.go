package action

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrMissingIdentity         = errors.New("action descriptor has no interface or action name")
	ErrAuthCycle               = errors.New("auth setup requires itself")
	ErrAuthCandidateOutOfRange = errors.New("auth setup candidate out of range")
)

// Param is one node of a request or response value tree.
type Param struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Value      *string  `json:"value,omitempty"`
	Nullable   bool     `json:"nullable,omitempty"`
	Children   []*Param `json:"children,omitempty"`
	Candidates []*Param `json:"candidates,omitempty"`
}

// Copy returns an independent value tree for one invocation. Candidate
// values are schema hints and are not carried over.
func (p *Param) Copy() *Param {
	return p.copy(false)
}

func (p *Param) CopyComplete() *Param {
	return p.copy(true)
}

func (p *Param) copy(complete bool) *Param {
	if p == nil {
		return nil
	}
	cp := &Param{Name: p.Name, Type: p.Type, Nullable: p.Nullable}
	if p.Value != nil {
		v := *p.Value
		cp.Value = &v
	}
	cp.Children = copyParams(p.Children, complete)
	if complete {
		cp.Candidates = copyParams(p.Candidates, true)
	}
	return cp
}

func copyParams(in []*Param, complete bool) []*Param {
	if in == nil {
		return nil
	}
	out := make([]*Param, len(in))
	for i, p := range in {
		out[i] = p.copy(complete)
	}
	return out
}

// Descriptor describes one remotely invokable action.
type Descriptor struct {
	InterfaceID    string `json:"interfaceId"`
	ClientInfo     string `json:"clientInfo,omitempty"`
	ClientVariable string `json:"clientVariable,omitempty"`
	ActionName     string `json:"actionName"`

	RequestParams []*Param `json:"requestParams,omitempty"`
	ResponseParam *Param   `json:"responseParam,omitempty"`

	IsAuthorized           bool        `json:"isAuthorized"`
	RequiredAuthCandidates []int       `json:"requiredAuthCandidates,omitempty"`
	RelatedCustomization   []string    `json:"relatedCustomization,omitempty"`
	AuthSetup              *Descriptor `json:"authSetup,omitempty"`

	ResponseVariable                string `json:"responseVariable,omitempty"`
	ControllerVariable              string `json:"controllerVariable,omitempty"`
	DoGenerateAssertions            bool   `json:"doGenerateAssertions,omitempty"`
	DoGenerateTestScript            bool   `json:"doGenerateTestScript,omitempty"`
	MaxAssertionForDataInCollection int    `json:"maxAssertionForDataInCollection,omitempty"`
}

func (d *Descriptor) Name() string {
	return d.InterfaceID + ":" + d.ActionName
}

// Validate reports a missing identity or a cyclic auth setup chain.
func (d *Descriptor) Validate() error {
	if d == nil || d.InterfaceID == "" || d.ActionName == "" {
		return ErrMissingIdentity
	}
	seen := map[string]struct{}{d.Name(): {}}
	for s := d.AuthSetup; s != nil; s = s.AuthSetup {
		if s.InterfaceID == "" || s.ActionName == "" {
			return fmt.Errorf("auth setup of %s: %w", d.Name(), ErrMissingIdentity)
		}
		if _, ok := seen[s.Name()]; ok {
			return fmt.Errorf("%w: %s", ErrAuthCycle, s.Name())
		}
		seen[s.Name()] = struct{}{}
	}
	return nil
}

// Copy returns the minimal projection used to drive one invocation. The
// request tree is deep-copied; the response shape is shared since it is
// never mutated after construction. It panics when the identity is unset.
func (d *Descriptor) Copy() *Descriptor {
	if d == nil || d.InterfaceID == "" || d.ActionName == "" {
		panic(ErrMissingIdentity)
	}
	return &Descriptor{
		InterfaceID:                     d.InterfaceID,
		ClientInfo:                      d.ClientInfo,
		ClientVariable:                  d.ClientVariable,
		ActionName:                      d.ActionName,
		RequestParams:                   copyParams(d.RequestParams, false),
		ResponseParam:                   d.ResponseParam,
		IsAuthorized:                    d.IsAuthorized,
		ResponseVariable:                d.ResponseVariable,
		ControllerVariable:              d.ControllerVariable,
		DoGenerateAssertions:            d.DoGenerateAssertions,
		DoGenerateTestScript:            d.DoGenerateTestScript,
		MaxAssertionForDataInCollection: d.MaxAssertionForDataInCollection,
	}
}

// CopyComplete returns the complete projection: the minimal one plus the
// candidate auth list and customization tags, neither shared with d.
func (d *Descriptor) CopyComplete() *Descriptor {
	cp := d.Copy()
	cp.RequestParams = copyParams(d.RequestParams, true)
	cp.RequiredAuthCandidates = slices.Clone(d.RequiredAuthCandidates)
	cp.RelatedCustomization = uniqueTags(d.RelatedCustomization)
	return cp
}

// Invocation is Copy plus the auth setup chain, each level copied the same
// way. It is what gets sent to the subject.
func (d *Descriptor) Invocation() *Descriptor {
	cp := d.Copy()
	for dst, src := cp, d.AuthSetup; src != nil; dst, src = dst.AuthSetup, src.AuthSetup {
		dst.AuthSetup = src.Copy()
	}
	return cp
}

// uniqueTags keeps the first occurrence of each tag; customization tags
// form a set.
func uniqueTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// SetAuthSetup makes setup the single auth step run before d, keeping
// whatever setup chain setup itself carries. A nil setup clears it.
func (d *Descriptor) SetAuthSetup(setup *Descriptor) error {
	if setup == nil {
		d.AuthSetup = nil
		return nil
	}
	if err := setup.Validate(); err != nil {
		return err
	}
	if err := d.requires(setup); err != nil {
		return err
	}
	d.AuthSetup = setup.Invocation()
	return nil
}

func (d *Descriptor) requires(setup *Descriptor) error {
	for s := setup; s != nil; s = s.AuthSetup {
		if s == d || s.Name() == d.Name() {
			return fmt.Errorf("%w: %s", ErrAuthCycle, d.Name())
		}
	}
	return nil
}
