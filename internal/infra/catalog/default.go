package catalog

// Default is the built-in content of the dashboard.
func Default() Content {
	return Content{
		Missions: []Mission{
			{ID: "daily_recycle", Title: "Sort today's recycling", Kind: "daily", Points: 20},
			{ID: "daily_walk", Title: "Walk or cycle instead of driving", Kind: "daily", Points: 30},
			{ID: "daily_cleanup", Title: "Pick up litter in your area", Kind: "daily", Points: 50},
			{ID: "upload_plant_image", Title: "Upload a photo of a plant you grew", Kind: "upload", Media: "image", Points: 70},
			{ID: "upload_ecopark_image", Title: "Upload a photo from an eco park", Kind: "upload", Media: "image", Points: 40},
			{ID: "upload_nature_video", Title: "Upload a short nature video", Kind: "upload", Media: "video", Points: 120},
		},
		Quizzes: []Quiz{
			{
				ID:         "q1",
				Title:      "Climate Change Basics",
				Category:   "Climate Change",
				Difficulty: "Beginner",
				Questions: []Question{
					{
						Text:    "What is the main cause of climate change?",
						Options: []string{"Solar flares", "Greenhouse gases", "Ocean currents", "Volcanic activity"},
						Correct: 1,
					},
					{
						Text:    "Which gas contributes most to global warming?",
						Options: []string{"Oxygen", "Nitrogen", "Carbon Dioxide", "Hydrogen"},
						Correct: 2,
					},
				},
				PointsPerQuestion: 50,
				TimeLimitMinutes:  10,
			},
		},
		Challenges: []Challenge{
			{
				ID:          "ch1",
				Title:       "Plant a Tree Challenge",
				Description: "Plant a tree in your local community and document the process.",
				Difficulty:  "Medium",
				Category:    "Planting",
				Points:      200,
				BadgeReward: "tree_hugger",
				Impact:      "1 tree planted = 22 kg CO2 absorbed annually",
			},
			{
				ID:          "ch2",
				Title:       "Recycle 10 Plastic Bottles",
				Description: "Collect and properly recycle 10 plastic bottles.",
				Difficulty:  "Easy",
				Category:    "Recycling",
				Points:      100,
				BadgeReward: "recycling_champion",
				Impact:      "10 bottles = 0.5 kg plastic diverted from landfill",
			},
		},
	}
}
