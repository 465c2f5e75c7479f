package progress

import (
	"sort"
	"time"

	"github.com/learnloop/learnloop-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK CALCULATOR
// Серия - количество последовательных календарных дней (заканчивающихся
// сегодня или вчера), в которые пользователь обращался к контенту.
// Значение вычисляется по запросу из дат обращений и нигде не хранится
// инкрементально.
// ══════════════════════════════════════════════════════════════════════════════

// StreakLookbackDays - сколько последних различных дней обращений учитывается.
const StreakLookbackDays = 30

// CalculateStreak вычисляет серию из дат обращений.
//
// Алгоритм:
//   - нет обращений → 0;
//   - последнее обращение раньше, чем вчера → серия прервана, 0;
//   - иначе серия = 1 и увеличивается на каждую соседнюю пару дат,
//     отстоящих ровно на один день; первый разрыв останавливает подсчёт.
func CalculateStreak(now time.Time, accessDates []time.Time) int {
	days := distinctDaysDesc(accessDates)
	if len(days) == 0 {
		return 0
	}
	if len(days) > StreakLookbackDays {
		days = days[:StreakLookbackDays]
	}

	today := timeutil.StartOfDay(now)
	if timeutil.DaysBetween(days[0], today) > 1 {
		return 0
	}

	streak := 1
	for i := 1; i < len(days); i++ {
		if timeutil.DaysBetween(days[i], days[i-1]) == 1 {
			streak++
		} else {
			break
		}
	}
	return streak
}

// distinctDaysDesc приводит метки времени к началу дня, убирает дубликаты
// и сортирует от новых к старым.
func distinctDaysDesc(timestamps []time.Time) []time.Time {
	seen := make(map[time.Time]struct{}, len(timestamps))
	days := make([]time.Time, 0, len(timestamps))
	for _, ts := range timestamps {
		day := timeutil.StartOfDay(ts)
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].After(days[j])
	})
	return days
}
