package memory

var ResetDefault = resetDefault
