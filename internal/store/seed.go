package store

// DefaultProtocols is the built-in protocol set for common health concerns.
// Seeded on startup when a protocol is not already present (matched by name).
func DefaultProtocols() []Protocol {
	return []Protocol{
		{
			Name:        "Fever Management",
			Description: "Protocol for handling fever and temperature-related concerns",
			Keywords:    []string{"fever", "temperature", "hot", "burning", "chills", "thermometer"},
			Instructions: ProtocolInstructions{
				Steps: []string{
					"Ask about fever duration and current temperature",
					"Check for accompanying symptoms (cough, body ache, throat pain)",
					"Recommend rest and adequate hydration",
					"Suggest paracetamol for temperature above 100°F",
					"Advise doctor consultation if fever persists beyond 3 days",
				},
				Warnings: []string{
					"Seek immediate medical attention if temperature exceeds 103°F",
					"Watch for signs of dehydration or difficulty breathing",
				},
			},
		},
		{
			Name:        "Stomach Issues",
			Description: "Protocol for digestive and stomach-related problems",
			Keywords:    []string{"stomach", "ache", "pain", "nausea", "vomit", "diarrhea", "constipation", "indigestion"},
			Instructions: ProtocolInstructions{
				Steps: []string{
					"Ask about nature of pain (sharp, dull, cramping)",
					"Inquire about recent food intake and dietary changes",
					"Recommend bland diet (BRAT - Banana, Rice, Applesauce, Toast)",
					"Suggest staying hydrated with ORS or clear fluids",
					"Advise avoiding spicy, oily, and heavy foods",
				},
				Warnings: []string{
					"Seek immediate care for severe abdominal pain",
					"Blood in stool or vomit requires medical attention",
					"Persistent vomiting leading to dehydration needs medical care",
				},
			},
		},
		{
			Name:        "Cold and Cough",
			Description: "Protocol for managing common cold and cough symptoms",
			Keywords:    []string{"cold", "cough", "sneeze", "runny nose", "congestion", "sore throat"},
			Instructions: ProtocolInstructions{
				Steps: []string{
					"Ask about symptom duration and severity",
					"Recommend adequate rest and sleep",
					"Suggest warm fluids like tea with honey and ginger",
					"Advise steam inhalation for congestion",
					"Recommend saltwater gargling for sore throat",
				},
				Warnings: []string{
					"If cough persists beyond 2 weeks, consult a doctor",
					"Difficulty breathing requires immediate medical attention",
					"High fever with cold needs medical evaluation",
				},
			},
		},
		{
			Name:        "Headache Management",
			Description: "Protocol for managing different types of headaches",
			Keywords:    []string{"headache", "migraine", "head pain", "head ache"},
			Instructions: ProtocolInstructions{
				Steps: []string{
					"Ask about headache location, intensity, and duration",
					"Inquire about triggers (stress, screen time, sleep quality)",
					"Recommend rest in a dark, quiet room",
					"Suggest adequate hydration",
					"Advise mild pain relief if needed",
				},
				Warnings: []string{
					"Sudden severe headache needs immediate medical attention",
					"Headache with vision changes or numbness requires doctor consultation",
					"Persistent or worsening headaches should be evaluated medically",
				},
			},
		},
		{
			Name:        "Emergency Situations",
			Description: "Protocol for identifying emergency medical situations",
			Keywords:    []string{"emergency", "severe", "urgent", "critical", "chest pain", "difficulty breathing", "unconscious", "bleeding heavily"},
			Instructions: ProtocolInstructions{
				Steps: []string{
					"IMMEDIATELY advise calling emergency services or visiting ER",
					"Do not provide health advice for emergency situations",
					"Emphasize urgency of professional medical care",
				},
				Warnings: []string{
					"This is a medical emergency",
					"Call emergency services or visit nearest hospital immediately",
					"Do not delay seeking professional medical help",
				},
			},
		},
		{
			Name:        "Refund Policy",
			Description: "Protocol for handling refund and subscription queries",
			Keywords:    []string{"refund", "payment", "subscription", "cancel", "billing", "charge"},
			Instructions: ProtocolInstructions{
				Steps: []string{
					"Acknowledge the billing concern empathetically",
					"Direct the user to the support team for account and billing matters",
					"Do not promise refunds or make billing commitments in chat",
				},
				Warnings: []string{
					"Never collect payment details in conversation",
				},
			},
		},
	}
}
