package bot

import "sync"

// dialogStep — шаг пошагового ввода администратора.
type dialogStep int

const (
	stepTitle dialogStep = iota + 1
	stepDescription
	stepImage
	stepCandidates
	stepChannels
	stepBroadcast
)

// dialogState хранит позицию администратора в диалоге и собираемое голосование.
type dialogState struct {
	step     dialogStep
	surveyID int64
}

// dialogs — активные диалоги по идентификатору администратора.
// Вебхук обрабатывает апдейты конкурентно, доступ под мьютексом.
type dialogs struct {
	mu     sync.Mutex
	active map[int64]*dialogState
}

func newDialogs() *dialogs {
	return &dialogs{active: make(map[int64]*dialogState)}
}

func (d *dialogs) start(userID int64, step dialogStep) {
	d.mu.Lock()
	d.active[userID] = &dialogState{step: step}
	d.mu.Unlock()
}

func (d *dialogs) startFor(userID int64, step dialogStep, surveyID int64) {
	d.mu.Lock()
	d.active[userID] = &dialogState{step: step, surveyID: surveyID}
	d.mu.Unlock()
}

// get возвращает копию состояния, чтобы читатель не держал мьютекс.
func (d *dialogs) get(userID int64) (dialogState, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.active[userID]
	if !ok {
		return dialogState{}, false
	}
	return *st, true
}

func (d *dialogs) advance(userID int64, step dialogStep, surveyID int64) {
	d.mu.Lock()
	d.active[userID] = &dialogState{step: step, surveyID: surveyID}
	d.mu.Unlock()
}

func (d *dialogs) clear(userID int64) {
	d.mu.Lock()
	delete(d.active, userID)
	d.mu.Unlock()
}
