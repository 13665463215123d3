package basketball

import (
	"time"

	"github.com/zeusync/netecs/internal/core/engine"
	"github.com/zeusync/netecs/internal/core/system"
)

// Autoplay sends a gameplay request every interval on behalf of an idle
// peer, cycling through throw, spawn NPC and switch avatar.
type Autoplay struct {
	system.Base

	eng      *engine.Engine
	interval time.Duration
	look     AvatarDetails
	next     time.Duration
	step     int
}

func NewAutoplay(eng *engine.Engine, interval time.Duration, look AvatarDetails) *Autoplay {
	return &Autoplay{
		Base:     system.NewBase("basketball.autoplay", system.PhasePostUpdate),
		eng:      eng,
		interval: interval,
		look:     look,
		next:     interval,
	}
}

func (s *Autoplay) Update(tick system.Tick) error {
	if s.interval <= 0 || tick.Elapsed < s.next {
		return nil
	}
	s.next += s.interval

	b, host := s.eng.Bus, s.eng.HostID()
	defer func() { s.step++ }()
	switch s.step % 3 {
	case 0:
		return RequestThrow(b, host)
	case 1:
		return RequestNpc(b, host, s.look)
	default:
		return RequestSwitch(b, host)
	}
}
