package ui

import (
	"podscompanion/internal/podstate"
)

// componentView is what one column of the popup shows
type componentView struct {
	Name     string
	Icon     string
	Fraction float64 // level bar value, 0 when unknown
	Label    string
	Known    bool
}

// componentViews lays out the popup columns: left pod, case, right pod
func componentViews(s podstate.Status) []componentView {
	return []componentView{
		newComponentView("Left", "audio-headphones-symbolic", s.Left),
		newComponentView("Case", "media-removable-symbolic", s.Case),
		newComponentView("Right", "audio-headphones-symbolic", s.Right),
	}
}

func newComponentView(name, icon string, p podstate.PodStatus) componentView {
	v := componentView{Name: name, Icon: icon, Label: p.Label()}
	if p.Charge != nil {
		v.Known = true
		v.Fraction = float64(min(max(*p.Charge, 0), 100)) / 100
	}
	return v
}

// windowTitle names the popup after the connected model
func windowTitle(s podstate.Status) string {
	return s.Model.DisplayName()
}
