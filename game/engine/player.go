package engine

import "github.com/wricardo/partyroom/game/protocol"

// ReportCard is a player's mutable per-round record.
type ReportCard struct {
	Score int `json:"score"`
}

// Player is a roster entry. The room owns it from join to disconnect.
type Player struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Color  string     `json:"color"`
	Report ReportCard `json:"report"`
}

// View renders the public roster entry.
func (p *Player) View(host bool) protocol.PlayerView {
	return protocol.PlayerView{
		ID:    p.ID,
		Name:  p.Name,
		Color: p.Color,
		Host:  host,
		Score: p.Report.Score,
	}
}

// ResetScores zeroes every player's report card.
func ResetScores(players []*Player) {
	for _, p := range players {
		p.Report = ReportCard{}
	}
}
