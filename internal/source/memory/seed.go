package memory

import "workdiary/internal/core"

// DefaultEntries is the diary shipped with the application.
func DefaultEntries() []core.Entry {
	return []core.Entry{
		{
			Title:   "Week 1 (Jan 6-10)",
			Content: "First week of January. Setting goals and planning for the new year.",
			Date:    core.NewDate(2025, 1, 6),
		},
		{
			Title:   "Week 2 (Jan 13-17)",
			Content: "Second week of January. Making progress on new year resolutions.",
			Date:    core.NewDate(2025, 1, 13),
		},
		{
			Title:   "Week 3 (Feb 3-7)",
			Content: "Third week of the year. Building momentum on key projects.",
			Date:    core.NewDate(2025, 2, 3),
		},
		{
			Title:   "Week 4 (Feb 10-14)",
			Content: "Fourth week of the year. Reviewing and adjusting strategies.",
			Date:    core.NewDate(2025, 2, 10),
		},
		{
			Title:   "Week 5 (Mar 3-7)",
			Content: "Fifth week of the year. Implementing new processes and systems.",
			Date:    core.NewDate(2025, 3, 3),
		},
		{
			Title:   "Week 6 (Mar 10-14)",
			Content: "Sixth week of the year. Evaluating progress and making improvements.",
			Date:    core.NewDate(2025, 3, 10),
		},
		{
			Title:   "Week 7 (Apr 7-11)",
			Content: "Seventh week of the year. Finalizing Q1 objectives and planning Q2.",
			Date:    core.NewDate(2025, 4, 7),
		},
		{
			Title:   "Week 8 (Apr 14-18)",
			Content: "Eighth week of the year. Setting up for successful Q2 execution.",
			Date:    core.NewDate(2025, 4, 14),
		},
		{
			Title:   "Week 9 (Dec 2-6)",
			Content: "Ninth week of the year. Year-end review and planning.",
			Date:    core.NewDate(2024, 12, 2),
		},
		{
			Title:   "Week 10 (Dec 9-13)",
			Content: "Tenth week of the year. Holiday preparations and team celebrations.",
			Date:    core.NewDate(2024, 12, 9),
		},
	}
}
