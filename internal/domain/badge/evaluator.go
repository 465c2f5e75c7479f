package badge

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATOR
// Чистая функция над снимком прогресса. Сама выдача (с защитой от дублей)
// остаётся на стороне хранилища, здесь только проверка требований.
// ══════════════════════════════════════════════════════════════════════════════

// ProgressSnapshot - снимок прогресса пользователя на момент оценки.
// Все три измерения читаются до начала цикла, поэтому результат
// не зависит от порядка обхода значков.
type ProgressSnapshot struct {
	// TotalPoints - накопленные очки.
	TotalPoints int

	// CompletedCount - количество завершённых единиц контента.
	CompletedCount int

	// StreakDays - текущая серия в днях.
	StreakDays int
}

// Meets проверяет, удовлетворяет ли снимок требованию значка.
// Неизвестный вид требования (данные повреждены) трактуется как
// невыполненный: лучше не выдать значок, чем выдать ошибочно.
func (s ProgressSnapshot) Meets(b *Badge) bool {
	switch b.RequirementKind {
	case RequirementPoints:
		return s.TotalPoints >= b.RequirementValue
	case RequirementContentComplete:
		return s.CompletedCount >= b.RequirementValue
	case RequirementStreakDays:
		return s.StreakDays >= b.RequirementValue
	default:
		return false
	}
}

// Eligible возвращает значки из candidates, требования которых выполнены
// и которые ещё не выданы (granted - множество уже выданных ID).
func Eligible(snapshot ProgressSnapshot, candidates []*Badge, granted map[string]struct{}) []*Badge {
	var eligible []*Badge
	for _, b := range candidates {
		if !b.Active {
			continue
		}
		if _, already := granted[b.ID]; already {
			continue
		}
		if snapshot.Meets(b) {
			eligible = append(eligible, b)
		}
	}
	return eligible
}
