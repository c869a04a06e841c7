package intent

// DefaultCategories returns the built-in question categories.
//
// Declaration order matters: the matcher returns the first category that
// clears the threshold, so more specific categories come first.
func DefaultCategories() []Category {
	return []Category{
		{
			Name: "glossary",
			Phrases: []string{
				"what is an annuity",
				"what is a structured settlement",
				"annuity definition",
				"structured settlement definition",
				"what does present value mean",
				"what is a discount rate",
			},
			Answer: "An annuity is a series of scheduled payments over time, " +
				"often set up as part of a structured settlement. Instead of one " +
				"lump sum, you receive regular payments on a fixed schedule. If " +
				"you'd rather have cash now, we can quote a lump-sum value for " +
				"some or all of those future payments.",
		},
		{
			Name: "company",
			Phrases: []string{
				"why work with smarterpayouts",
				"who is smarterpayouts",
				"is smarterpayouts legit",
				"tell me about smarterpayouts",
			},
			Answer: "SmarterPayouts gives you an instant, no-pressure quote for " +
				"your future payments - no personal information required up front. " +
				"Every transfer is reviewed and approved by a judge, and our team " +
				"walks you through each step.",
		},
		{
			Name: "process",
			Phrases: []string{
				"how does the process work",
				"how does selling my payments work",
				"what are the steps to sell",
				"how long does it take",
				"do i need to go to court",
			},
			Answer: "The process has four steps: get an instant quote, review " +
				"your offer with us, a judge approves the transfer, and you get " +
				"paid. Most transfers complete in 45 to 90 days depending on your " +
				"state.",
		},
		{
			Name: "payout",
			Phrases: []string{
				"how much money can i get",
				"how much are my payments worth",
				"can i sell part of my payments",
				"do i have to sell all my payments",
			},
			Answer: "You can sell all of your future payments or just a " +
				"portion. The amount you receive is the present value of the " +
				"payments you sell - use our calculator for an instant estimate, " +
				"or ask for a quote right here in chat.",
		},
		{
			Name: "taxes",
			Phrases: []string{
				"is the money taxable",
				"do i pay taxes on the sale",
				"are structured settlement payments taxed",
			},
			Answer: "Structured settlement payments from personal injury cases " +
				"are generally tax-free, and selling them typically keeps that " +
				"treatment. Your situation may differ, so please confirm with a " +
				"tax professional.",
		},
	}
}
