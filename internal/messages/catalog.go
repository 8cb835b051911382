package messages

var birthdayBodies = []string{
	"Happy birthday, {GIVEN_NAME}! Wishing you a fantastic year ahead.",
	"Happy birthday {GIVEN_NAME}! Hope your day is as great as you are.",
	"{GIVEN_NAME}, happy birthday! Enjoy every minute of today.",
	"Wishing you the happiest of birthdays, {GIVEN_NAME}!",
	"Happy birthday {GIVEN_NAME}! Have an amazing day and a wonderful year.",
}

var birthdaySubjects = []string{
	"Happy Birthday {GIVEN_NAME}!",
	"Birthday wishes for {GIVEN_NAME}",
	"Have a great birthday, {GIVEN_NAME}",
}

var anniversaryBodies = []string{
	"Happy anniversary, {GIVEN_NAME}! Wishing you many more happy years together.",
	"Happy anniversary {GIVEN_NAME}! Hope you celebrate in style today.",
	"{GIVEN_NAME}, congratulations on another year together. Happy anniversary!",
}

var anniversarySubjects = []string{
	"Happy Anniversary {GIVEN_NAME}!",
	"Anniversary wishes for {GIVEN_NAME}",
}
