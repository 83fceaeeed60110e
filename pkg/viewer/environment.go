package viewer

import "github.com/taigrr/showroom/pkg/scene"

// SetWireframe switches every material of the current model between
// wireframe and solid. Loading a model resets it to solid.
func (s *Session) SetWireframe(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model == nil {
		return ErrNoModel
	}
	setWireframe(s.model, on)
	s.wireframe = on
	return nil
}

// ToggleWireframe flips wireframe mode and returns the new setting.
func (s *Session) ToggleWireframe() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model == nil {
		return false, ErrNoModel
	}
	s.wireframe = !s.wireframe
	setWireframe(s.model, s.wireframe)
	return s.wireframe, nil
}

// Wireframe reports whether wireframe mode is on.
func (s *Session) Wireframe() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wireframe
}

// SetLightIntensity drives the main light at v, the hemisphere light at
// half of v and the fill light at 0.4 of v.
func (s *Session) SetLightIntensity(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l := s.scene.Light(LightMain); l != nil {
		l.Intensity = v
	}
	if s.scene.Hemisphere != nil {
		s.scene.Hemisphere.Intensity = v * 0.5
	}
	if l := s.scene.Light(LightFill); l != nil {
		l.Intensity = v * 0.4
	}
}

// SetBackground sets the background and the fog color together so distant
// geometry fades into the background.
func (s *Session) SetBackground(c scene.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scene.Background = c
	if s.scene.Fog != nil {
		s.scene.Fog.Color = c
	}
}

// SetGridVisible shows or hides the ground grid.
func (s *Session) SetGridVisible(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scene.Grid != nil {
		s.scene.Grid.Visible = on
	}
}

// SetAutoRotate turns orbiting around the model on or off.
func (s *Session) SetAutoRotate(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controls.AutoRotate = on
}

// ToggleAutoRotate flips auto-rotation and returns the new setting.
func (s *Session) ToggleAutoRotate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controls.AutoRotate = !s.controls.AutoRotate
	return s.controls.AutoRotate
}

// AutoRotate reports whether auto-rotation is on.
func (s *Session) AutoRotate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controls.AutoRotate
}

// ResetCamera returns the camera to the last auto-framed position.
func (s *Session) ResetCamera() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controls.Reset()
	s.controls.Apply(s.camera)
}

// Orbit adds rotation velocity in radians per frame.
func (s *Session) Orbit(yaw, pitch float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controls.Rotate(yaw, pitch)
}

// Zoom adds zoom velocity; positive values move away from the model.
func (s *Session) Zoom(amount float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controls.Zoom(amount)
}

// Pan shifts the orbit target in the view plane.
func (s *Session) Pan(dx, dy float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controls.Pan(dx, dy)
	s.controls.Apply(s.camera)
}
