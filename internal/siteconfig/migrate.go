package siteconfig

// MigrateFormType derives hero.formType from the legacy reservationVisible
// flag when an emission carries a hero section without formType. A present
// formType is never touched.
func MigrateFormType(s *Snapshot) bool {
	if s == nil {
		return false
	}
	hero, ok := s.sections["hero"].(map[string]interface{})
	if !ok {
		return false
	}
	if ft, present := hero["formType"]; present && ft != nil {
		return false
	}
	if visible, ok := hero["reservationVisible"].(bool); ok && !visible {
		hero["formType"] = string(FormNone)
	} else {
		hero["formType"] = string(FormReservation)
	}
	return true
}
