package commands

import (
	"fmt"

	"github.com/leapstack-labs/polylex/internal/registry"
)

var exampleSnippets = map[string]string{
	"c": `#include <stdio.h>

int main() {
    printf("Hello, World!\n");
    return 0;
}`,
	"cpp": `#include <iostream>

int main() {
    std::cout << "Hello, World!" << std::endl;
    return 0;
}`,
	"java": `public class HelloWorld {
    public static void main(String[] args) {
        System.out.println("Hello, World!");
    }
}`,
	"python": `def greet(name):
    print(f"Hello, {name}!")
    return True

greet("World")`,
	"js": `function greet(name) {
    console.log("Hello, " + name + "!");
    return true;
}

greet("World");`,
}

// ExampleSnippet returns sample source for a language. Unknown languages get
// a generic C-like snippet.
func ExampleSnippet(languageID string) string {
	id := registry.NormalizeID(languageID)
	if s, ok := exampleSnippets[id]; ok {
		return s
	}
	return fmt.Sprintf("// Example code for %s\nfunction example() {\n    return \"Hello, World!\";\n}", id)
}
