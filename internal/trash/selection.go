package trash

import "survey-admin/internal/model"

// Selection tracks the row a context menu was opened on and the row a
// confirmation dialog acts on. The dialog owns its target: closing the menu
// never clears it, only closing the dialog does.
type Selection struct {
	menu   *model.Target
	dialog *model.Target
}

func (s *Selection) OpenMenu(t model.Target) {
	s.menu = &t
}

func (s *Selection) CloseMenu() {
	s.menu = nil
}

func (s *Selection) Menu() (model.Target, bool) {
	if s.menu == nil {
		return model.Target{}, false
	}
	return *s.menu, true
}

// Promote hands the menu target to the dialog and closes the menu.
func (s *Selection) Promote() (model.Target, bool) {
	if s.menu == nil {
		return model.Target{}, false
	}
	t := *s.menu
	s.dialog = &t
	s.menu = nil
	return t, true
}

func (s *Selection) Dialog() (model.Target, bool) {
	if s.dialog == nil {
		return model.Target{}, false
	}
	return *s.dialog, true
}

func (s *Selection) CloseDialog() {
	s.dialog = nil
}

// Current is the dialog target if any, else the menu target.
func (s *Selection) Current() (model.Target, bool) {
	if t, ok := s.Dialog(); ok {
		return t, true
	}
	return s.Menu()
}
