package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const topChatters = 3

type Chatter struct {
	Username string `json:"username"`
	Messages int    `json:"messages"`
}

type Summary struct {
	Since       time.Time `json:"since"`
	Messages    int       `json:"messages"`
	Chatters    int       `json:"chatters"`
	Spoken      int       `json:"spoken"`
	RatePerMin  float64   `json:"rate_per_min"`
	TopChatters []Chatter `json:"top_chatters"`
}

// Stats counts chat activity since the last reset.
type Stats struct {
	mu    sync.Mutex
	clock clockwork.Clock

	startTime     time.Time
	countMessages map[string]int
	total         int
	spoken        int
}

func New(clock clockwork.Clock) *Stats {
	s := &Stats{clock: clock}
	s.Reset()
	return s
}

func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.startTime = s.clock.Now()
	s.countMessages = make(map[string]int)
	s.total = 0
	s.spoken = 0
}

func (s *Stats) AddMessage(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.countMessages[username]++
	s.total++
}

func (s *Stats) AddSpoken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken++
}

func (s *Stats) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{
		Since:    s.startTime,
		Messages: s.total,
		Chatters: len(s.countMessages),
		Spoken:   s.spoken,
	}
	if elapsed := s.clock.Since(s.startTime).Minutes(); elapsed > 0 {
		sum.RatePerMin = float64(s.total) / elapsed
	}

	list := make([]Chatter, 0, len(s.countMessages))
	for k, v := range s.countMessages {
		list = append(list, Chatter{Username: k, Messages: v})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Messages != list[j].Messages {
			return list[i].Messages > list[j].Messages
		}
		return list[i].Username < list[j].Username
	})

	sum.TopChatters = list[:min(topChatters, len(list))]
	return sum
}
