package types

import "fmt"

// Issue はトラッカーから取得した処理対象のチケット
type Issue struct {
	ID       string `json:"id"`
	Number   int    `json:"number"`
	Key      string `json:"key,omitempty"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	URL      string `json:"url"`
	Assignee string `json:"assignee,omitempty"`
}

// DisplayName はログやステータス表示用の識別子を返す
func (i Issue) DisplayName() string {
	if i.Key != "" {
		return i.Key
	}
	return fmt.Sprintf("#%d", i.Number)
}
