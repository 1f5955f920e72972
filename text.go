package main

// AboutMe is the introduction shown above the case study list.
var AboutMe = `I design and build products that are calm to use, and I care about how they work behind the scenes.
Some of the case studies below cover client work under NDA. Those pages stop at a password prompt;
ask for access and I'll share the password, or keep reading the parts that are public.`
